// Package walker builds lazy, filterable directory listings with exclusion
// matching and symlink-cycle protection.
package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/digest/internal/types"
	"github.com/temirov/digest/internal/utils"
)

const (
	// warningSkipCycleFormat is used when a directory is skipped by the cycle guard.
	warningSkipCycleFormat = "skipping potentially circular path %s"
	// warningListDirectoryFormat is used when a directory listing fails mid-walk.
	warningListDirectoryFormat = "unable to list directory %s: %v"

	// errorInvalidRootFormat reports a root directory that does not exist.
	errorInvalidRootFormat = "root directory %s does not exist"
	// errorAbsolutePathFormat reports failure to resolve an absolute path.
	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	// errorNotDirectoryFormat reports a root path that is not a directory.
	errorNotDirectoryFormat = "root path %s is not a directory"

	// skippedCycleNodeName labels the synthetic node standing in for a cyclic directory.
	skippedCycleNodeName = "(skipped: potential circular reference)"
)

// Walker lists directory entries lazily, applying exclusion patterns and an
// optional extension filter. One Walker serves one root directory; the
// embedded TraversalSession persists across lazy expansions until Reset.
type Walker struct {
	root       string
	matcher    *ExclusionMatcher
	extensions []string
	session    *TraversalSession
	logger     *zap.Logger
}

// NewWalker validates rootPath and constructs a Walker over it. A missing or
// non-directory root is the only hard failure.
func NewWalker(rootPath string, matcher *ExclusionMatcher, extensions []string, logger *zap.Logger) (*Walker, error) {
	absoluteRootPath, absolutePathError := filepath.Abs(rootPath)
	if absolutePathError != nil {
		return nil, fmt.Errorf(errorAbsolutePathFormat, rootPath, absolutePathError)
	}
	rootInformation, rootStatError := os.Stat(absoluteRootPath)
	if rootStatError != nil {
		return nil, fmt.Errorf(errorInvalidRootFormat, absoluteRootPath)
	}
	if !rootInformation.IsDir() {
		return nil, fmt.Errorf(errorNotDirectoryFormat, absoluteRootPath)
	}
	if matcher == nil {
		matcher = NewExclusionMatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		root:       filepath.Clean(absoluteRootPath),
		matcher:    matcher,
		extensions: extensions,
		session:    NewTraversalSession(),
		logger:     logger,
	}, nil
}

// Root returns the absolute, cleaned root directory of the walker.
func (walker *Walker) Root() string {
	return walker.root
}

// Matcher returns the exclusion matcher the walker applies.
func (walker *Walker) Matcher() *ExclusionMatcher {
	return walker.matcher
}

// ResetSession clears the cycle-guard state before a fresh top-level walk.
func (walker *Walker) ResetSession() {
	walker.session.Reset()
}

// ListChildren lists the entries of folderPath as nodes: folders before
// files, each group in ascending case-sensitive order. A folder rejected by
// the cycle guard yields a single synthetic skipped node. Excluded entries
// are listed but marked, binary files are marked, and entries that cannot be
// inspected become unreadable nodes instead of aborting the listing.
func (walker *Walker) ListChildren(folderPath string) []*types.Node {
	normalizedFolderPath := filepath.Clean(folderPath)

	if !walker.session.IsSafe(normalizedFolderPath) {
		walker.logger.Warn(fmt.Sprintf(warningSkipCycleFormat, normalizedFolderPath))
		return []*types.Node{newSkippedCycleNode(normalizedFolderPath)}
	}

	return walker.listEntries(normalizedFolderPath)
}

// RelistChildren lists folderPath again after a prior successful visit.
// The cycle guard is bypassed: a folder that was already listed safely in
// this session stays safe, and re-listing it must not be mistaken for a
// cycle. Callers use this to pick up entries created since the first walk.
func (walker *Walker) RelistChildren(folderPath string) []*types.Node {
	return walker.listEntries(filepath.Clean(folderPath))
}

func (walker *Walker) listEntries(normalizedFolderPath string) []*types.Node {
	directoryEntries, readDirectoryError := os.ReadDir(normalizedFolderPath)
	if readDirectoryError != nil {
		walker.logger.Warn(fmt.Sprintf(warningListDirectoryFormat, normalizedFolderPath, readDirectoryError))
		return []*types.Node{newUnreadableNode(normalizedFolderPath, filepath.Base(normalizedFolderPath), readDirectoryError)}
	}

	var folderNodes []*types.Node
	var fileNodes []*types.Node

	for _, directoryEntry := range directoryEntries {
		node := walker.buildNode(normalizedFolderPath, directoryEntry)
		if node == nil {
			continue
		}
		if node.Kind == types.NodeKindFolder || (node.Kind == types.NodeKindSymlink && node.Target != "" && isDirectory(node.Target)) {
			folderNodes = append(folderNodes, node)
		} else {
			fileNodes = append(fileNodes, node)
		}
	}

	sortNodesByName(folderNodes)
	sortNodesByName(fileNodes)
	return append(folderNodes, fileNodes...)
}

// buildNode converts one directory entry into a node, or nil when the entry
// is filtered out by the extension filter.
func (walker *Walker) buildNode(parentPath string, directoryEntry fs.DirEntry) *types.Node {
	entryName := directoryEntry.Name()
	entryPath := filepath.Join(parentPath, entryName)
	relativePath := utils.RelativePathOrSelf(entryPath, walker.root)

	if directoryEntry.Type()&fs.ModeSymlink != 0 {
		return newSymlinkNode(entryPath, entryName)
	}

	if directoryEntry.IsDir() {
		node := &types.Node{
			Path:   entryPath,
			Name:   entryName,
			Kind:   types.NodeKindFolder,
			Status: types.NodeStatusNormal,
		}
		if walker.matcher.ShouldExclude(relativePath) {
			node.Status = types.NodeStatusExcluded
		}
		return node
	}

	if walker.matcher.ShouldExclude(relativePath) {
		return &types.Node{
			Path:   entryPath,
			Name:   entryName,
			Kind:   types.NodeKindFile,
			Status: types.NodeStatusExcluded,
		}
	}

	if !walker.matchesExtensionFilter(entryName) {
		return nil
	}

	if _, infoError := directoryEntry.Info(); infoError != nil {
		return newUnreadableNode(entryPath, entryName, infoError)
	}

	node := &types.Node{
		Path:   entryPath,
		Name:   entryName,
		Kind:   types.NodeKindFile,
		Status: types.NodeStatusNormal,
	}
	if utils.IsFileBinary(entryPath) {
		node.Status = types.NodeStatusBinary
	}
	return node
}

// matchesExtensionFilter reports whether fileName passes the caller-supplied
// extension filter. An empty filter matches every file; matching is a
// case-insensitive suffix comparison.
func (walker *Walker) matchesExtensionFilter(fileName string) bool {
	if len(walker.extensions) == 0 {
		return true
	}
	lowerFileName := strings.ToLower(fileName)
	for _, extension := range walker.extensions {
		if strings.HasSuffix(lowerFileName, strings.ToLower(extension)) {
			return true
		}
	}
	return false
}

// WalkAll enumerates every file under the walker's root as a flat, sorted
// slice of root-relative paths, honoring exclusion patterns, the extension
// filter, and the cycle guard. Symlinks are never traversed. The traversal
// session is reset before the walk begins.
func (walker *Walker) WalkAll() []string {
	walker.session.Reset()

	var relativeFilePaths []string
	walker.collectFiles(walker.root, &relativeFilePaths)
	sort.Strings(relativeFilePaths)
	return relativeFilePaths
}

func (walker *Walker) collectFiles(directoryPath string, collected *[]string) {
	if !walker.session.IsSafe(directoryPath) {
		walker.logger.Warn(fmt.Sprintf(warningSkipCycleFormat, directoryPath))
		return
	}

	directoryEntries, readDirectoryError := os.ReadDir(directoryPath)
	if readDirectoryError != nil {
		walker.logger.Warn(fmt.Sprintf(warningListDirectoryFormat, directoryPath, readDirectoryError))
		return
	}

	for _, directoryEntry := range directoryEntries {
		if directoryEntry.Type()&fs.ModeSymlink != 0 {
			continue
		}
		entryPath := filepath.Join(directoryPath, directoryEntry.Name())
		relativePath := utils.RelativePathOrSelf(entryPath, walker.root)
		if walker.matcher.ShouldExclude(relativePath) {
			continue
		}
		if directoryEntry.IsDir() {
			walker.collectFiles(entryPath, collected)
			continue
		}
		if !walker.matchesExtensionFilter(directoryEntry.Name()) {
			continue
		}
		*collected = append(*collected, relativePath)
	}
}

func newSkippedCycleNode(folderPath string) *types.Node {
	return &types.Node{
		Path:   folderPath,
		Name:   skippedCycleNodeName,
		Kind:   types.NodeKindFolder,
		Status: types.NodeStatusSkippedCycle,
	}
}

func newUnreadableNode(entryPath, entryName string, cause error) *types.Node {
	return &types.Node{
		Path:    entryPath,
		Name:    entryName,
		Kind:    types.NodeKindFile,
		Status:  types.NodeStatusUnreadable,
		ErrText: cause.Error(),
	}
}

// newSymlinkNode represents a symlink without following it. The resolved
// target is retained for display; resolution failures leave the target empty.
func newSymlinkNode(entryPath, entryName string) *types.Node {
	node := &types.Node{
		Path:   entryPath,
		Name:   entryName,
		Kind:   types.NodeKindSymlink,
		Status: types.NodeStatusNormal,
	}
	if resolvedTarget, resolveError := filepath.EvalSymlinks(entryPath); resolveError == nil {
		node.Target = resolvedTarget
	}
	return node
}

func isDirectory(path string) bool {
	information, statError := os.Stat(path)
	return statError == nil && information.IsDir()
}

func sortNodesByName(nodes []*types.Node) {
	sort.Slice(nodes, func(firstIndex, secondIndex int) bool {
		return nodes[firstIndex].Name < nodes[secondIndex].Name
	})
}
