package digest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/temirov/digest/internal/utils"
	"github.com/temirov/digest/internal/walker"
)

const (
	treeConnectorMiddle = "├── "
	treeConnectorLast   = "└── "
	treePrefixMiddle    = "│   "
	treePrefixLast      = "    "
)

// renderDirectoryTree produces the text tree of rootDirectory, pruning every
// entry whose relative path matches the exclusion matcher. Directories are
// listed before files, each group in ascending case-insensitive order.
// Unreadable directories are annotated inline instead of aborting.
func renderDirectoryTree(rootDirectory string, matcher *walker.ExclusionMatcher) string {
	rootName := filepath.Base(rootDirectory)
	treeLines := []string{rootName}
	appendDirectoryLines(rootDirectory, rootDirectory, "", matcher, &treeLines)
	return strings.Join(treeLines, "\n")
}

func appendDirectoryLines(directoryPath, rootDirectory, linePrefix string, matcher *walker.ExclusionMatcher, treeLines *[]string) {
	directoryEntries, readDirectoryError := os.ReadDir(directoryPath)
	if readDirectoryError != nil {
		*treeLines = append(*treeLines, linePrefix+treeConnectorLast+"(unreadable: "+readDirectoryError.Error()+")")
		return
	}

	visibleEntries := make([]os.DirEntry, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		entryPath := filepath.Join(directoryPath, directoryEntry.Name())
		relativePath := utils.RelativePathOrSelf(entryPath, rootDirectory)
		if matcher != nil && matcher.ShouldExclude(relativePath) {
			continue
		}
		visibleEntries = append(visibleEntries, directoryEntry)
	}

	sort.SliceStable(visibleEntries, func(firstIndex, secondIndex int) bool {
		firstEntry, secondEntry := visibleEntries[firstIndex], visibleEntries[secondIndex]
		if firstEntry.IsDir() != secondEntry.IsDir() {
			return firstEntry.IsDir()
		}
		return strings.ToLower(firstEntry.Name()) < strings.ToLower(secondEntry.Name())
	})

	for entryIndex, directoryEntry := range visibleEntries {
		isLastEntry := entryIndex == len(visibleEntries)-1
		connector := treeConnectorMiddle
		childPrefix := linePrefix + treePrefixMiddle
		if isLastEntry {
			connector = treeConnectorLast
			childPrefix = linePrefix + treePrefixLast
		}

		*treeLines = append(*treeLines, linePrefix+connector+directoryEntry.Name())
		if directoryEntry.IsDir() {
			appendDirectoryLines(filepath.Join(directoryPath, directoryEntry.Name()), rootDirectory, childPrefix, matcher, treeLines)
		}
	}
}
