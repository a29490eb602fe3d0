// Package digest composes the combined repository digest artifact: a
// directory-tree preamble followed by each selected file's contents in a
// fenced code block.
package digest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/temirov/digest/internal/utils"
	"github.com/temirov/digest/internal/walker"
)

const (
	structureHeader     = "# Repository Structure\n"
	selectedFilesHeader = "# Selected Files\n\n"
	fenceDelimiter      = "```"

	errorNoFilesSelected = "no files selected"

	// The inline error lines replace the fenced block for files that cannot
	// be read; composition of the remaining files continues.
	errorNotFoundFormat         = "Error: File not found - %s\n\n"
	errorPermissionDeniedFormat = "Error: Permission denied reading file - %s\n\n"
	errorBinaryFileFormat       = "Error: Could not read file (binary file) - %s\n\n"
	errorGenericReadFormat      = "Error reading file - %s: %v\n\n"

	// warningSectionErrorFormat is used when a selected file is replaced by
	// an inline error line in the document.
	warningSectionErrorFormat = "skipping content of %s: %s"
)

// Composer builds digest documents. It never persists output itself; the
// caller decides between stdout, a file, and the clipboard.
type Composer struct {
	logger *zap.Logger
}

// NewComposer constructs a Composer logging through logger.
func NewComposer(logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{logger: logger}
}

// Compose renders the digest for selectedPaths in input order, deduplicated
// with the first occurrence winning. Directory paths are skipped: callers
// expand folders into constituent files beforehand. The tree preamble covers
// the repository root located by walking upward from the common ancestor of
// the selected paths' parents toward a version-control marker.
func (composer *Composer) Compose(selectedPaths []string, matcher *walker.ExclusionMatcher) (string, error) {
	deduplicatedPaths := utils.DeduplicatePatterns(selectedPaths)
	if len(deduplicatedPaths) == 0 {
		return "", errors.New(errorNoFilesSelected)
	}

	absolutePaths := make([]string, 0, len(deduplicatedPaths))
	for _, selectedPath := range deduplicatedPaths {
		absolutePath, absolutePathError := filepath.Abs(selectedPath)
		if absolutePathError != nil {
			return "", fmt.Errorf("getting absolute path for %s: %w", selectedPath, absolutePathError)
		}
		absolutePaths = append(absolutePaths, filepath.Clean(absolutePath))
	}

	commonAncestor := commonParentDirectory(absolutePaths)
	repositoryRoot, _ := utils.FindRepositoryRoot(commonAncestor)

	var documentBuilder strings.Builder
	documentBuilder.WriteString(structureHeader)
	documentBuilder.WriteString(fenceDelimiter + "\n")
	documentBuilder.WriteString(renderDirectoryTree(repositoryRoot, matcher))
	documentBuilder.WriteString("\n" + fenceDelimiter + "\n\n")
	documentBuilder.WriteString(selectedFilesHeader)

	for _, absolutePath := range absolutePaths {
		if pathInformation, statError := os.Stat(absolutePath); statError == nil && pathInformation.IsDir() {
			continue
		}

		relativePath := utils.RelativePathOrSelf(absolutePath, commonAncestor)
		documentBuilder.WriteString("# " + relativePath + "\n\n")
		composer.writeFileSection(&documentBuilder, absolutePath, relativePath)
	}

	return documentBuilder.String(), nil
}

// writeFileSection emits one fenced content block, or an inline error line
// when the file cannot be read as text.
func (composer *Composer) writeFileSection(documentBuilder *strings.Builder, absolutePath, relativePath string) {
	fileBytes, readError := os.ReadFile(absolutePath)
	switch {
	case readError == nil:
	case os.IsNotExist(readError):
		composer.logger.Warn(fmt.Sprintf(warningSectionErrorFormat, relativePath, "file not found"))
		fmt.Fprintf(documentBuilder, errorNotFoundFormat, relativePath)
		return
	case os.IsPermission(readError):
		composer.logger.Warn(fmt.Sprintf(warningSectionErrorFormat, relativePath, "permission denied"))
		fmt.Fprintf(documentBuilder, errorPermissionDeniedFormat, relativePath)
		return
	default:
		composer.logger.Warn(fmt.Sprintf(warningSectionErrorFormat, relativePath, readError.Error()))
		fmt.Fprintf(documentBuilder, errorGenericReadFormat, relativePath, readError)
		return
	}

	if utils.IsBinary(fileBytes) || !utf8.Valid(fileBytes) {
		composer.logger.Warn(fmt.Sprintf(warningSectionErrorFormat, relativePath, "binary content"))
		fmt.Fprintf(documentBuilder, errorBinaryFileFormat, relativePath)
		return
	}

	languageTag := LanguageIdentifier(absolutePath)
	fileContent := strings.TrimRight(string(fileBytes), "\n") + "\n"

	documentBuilder.WriteString(fenceDelimiter + languageTag + "\n")
	documentBuilder.WriteString(fileContent)
	documentBuilder.WriteString(fenceDelimiter + "\n\n")
}

// commonParentDirectory computes the deepest directory containing the parent
// of every provided absolute path.
func commonParentDirectory(absolutePaths []string) string {
	commonDirectory := filepath.Dir(absolutePaths[0])
	for _, absolutePath := range absolutePaths[1:] {
		commonDirectory = commonPrefixDirectory(commonDirectory, filepath.Dir(absolutePath))
	}
	return commonDirectory
}

func commonPrefixDirectory(firstDirectory, secondDirectory string) string {
	firstComponents := strings.Split(filepath.ToSlash(firstDirectory), "/")
	secondComponents := strings.Split(filepath.ToSlash(secondDirectory), "/")

	var sharedComponents []string
	for componentIndex := 0; componentIndex < len(firstComponents) && componentIndex < len(secondComponents); componentIndex++ {
		if firstComponents[componentIndex] != secondComponents[componentIndex] {
			break
		}
		sharedComponents = append(sharedComponents, firstComponents[componentIndex])
	}
	if len(sharedComponents) == 0 {
		return string(filepath.Separator)
	}
	joinedPrefix := strings.Join(sharedComponents, "/")
	if joinedPrefix == "" {
		return string(filepath.Separator)
	}
	return filepath.FromSlash(joinedPrefix)
}
