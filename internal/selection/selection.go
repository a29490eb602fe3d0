// Package selection tracks which tree nodes are checked and resolves the
// checked set into concrete file paths.
package selection

import (
	"path/filepath"

	"github.com/temirov/digest/internal/types"
	"github.com/temirov/digest/internal/walker"
)

// StateMachine owns a tree of nodes addressed by path and the set of checked
// paths. Checking a folder is a bulk recursive operation issued at call time,
// not a standing constraint: descendants materialized later stay unchecked
// until checked individually.
type StateMachine struct {
	treeWalker   *walker.Walker
	nodesByPath  map[string]*types.Node
	rootNodes    []*types.Node
	checkedPaths map[string]struct{}
}

// NewStateMachine constructs a selection state machine over treeWalker and
// materializes the root level.
func NewStateMachine(treeWalker *walker.Walker) *StateMachine {
	stateMachine := &StateMachine{
		treeWalker:   treeWalker,
		nodesByPath:  make(map[string]*types.Node),
		checkedPaths: make(map[string]struct{}),
	}
	stateMachine.Refresh()
	return stateMachine
}

// Refresh discards all selection state and re-walks the root level. The
// walker's traversal session is reset so the cycle guard starts clean.
func (stateMachine *StateMachine) Refresh() {
	stateMachine.treeWalker.ResetSession()
	stateMachine.nodesByPath = make(map[string]*types.Node)
	stateMachine.checkedPaths = make(map[string]struct{})
	stateMachine.rootNodes = stateMachine.treeWalker.ListChildren(stateMachine.treeWalker.Root())
	stateMachine.registerNodes(stateMachine.rootNodes)
}

// RootNodes returns the top-level nodes in display order.
func (stateMachine *StateMachine) RootNodes() []*types.Node {
	return stateMachine.rootNodes
}

// Node returns the node registered under path, or nil.
func (stateMachine *StateMachine) Node(path string) *types.Node {
	return stateMachine.nodesByPath[path]
}

// Materialize populates a folder node's children through the walker,
// replacing any lazy placeholder. Already materialized folders are left
// untouched. Excluded folders are never materialized.
func (stateMachine *StateMachine) Materialize(path string) *types.Node {
	node := stateMachine.nodesByPath[path]
	if node == nil || node.Kind != types.NodeKindFolder {
		return node
	}
	if node.Status != types.NodeStatusNormal || node.Materialized {
		return node
	}
	node.Children = stateMachine.treeWalker.ListChildren(node.Path)
	node.Materialized = true
	stateMachine.registerNodes(node.Children)
	return node
}

// Check marks the node at path and, for folders, every descendant as
// checked. Unmaterialized folders are materialized first. Excluded and
// otherwise unselectable nodes are skipped, including inside the fan-out.
// A path created after its folder was materialized is adopted by re-listing
// the folder, so a file added after a folder cascade can still be checked
// individually without disturbing the existing selection.
func (stateMachine *StateMachine) Check(path string) {
	node := stateMachine.nodesByPath[path]
	if node == nil {
		node = stateMachine.adoptPath(path)
	}
	if node == nil || !node.IsSelectable() {
		return
	}
	stateMachine.checkedPaths[node.Path] = struct{}{}
	if node.Kind != types.NodeKindFolder {
		return
	}
	stateMachine.Materialize(node.Path)
	for _, childNode := range node.Children {
		stateMachine.Check(childNode.Path)
	}
}

// Uncheck clears the node at path and, for folders, every currently
// materialized descendant.
func (stateMachine *StateMachine) Uncheck(path string) {
	node := stateMachine.nodesByPath[path]
	if node == nil {
		return
	}
	delete(stateMachine.checkedPaths, node.Path)
	if node.Kind != types.NodeKindFolder {
		return
	}
	for _, childNode := range node.Children {
		stateMachine.Uncheck(childNode.Path)
	}
}

// Collapse handles closing a folder without an explicit uncheck: when the
// folder itself is no longer checked, stale per-child checks are cleared;
// a still-checked folder keeps its descendants checked.
func (stateMachine *StateMachine) Collapse(path string) {
	node := stateMachine.nodesByPath[path]
	if node == nil || node.Kind != types.NodeKindFolder {
		return
	}
	if stateMachine.IsChecked(node.Path) {
		return
	}
	for _, childNode := range node.Children {
		stateMachine.Uncheck(childNode.Path)
	}
}

// IsChecked reports whether the node at path is currently checked.
func (stateMachine *StateMachine) IsChecked(path string) bool {
	_, checked := stateMachine.checkedPaths[path]
	return checked
}

// CheckedFiles resolves the checked set into file paths in display order:
// folders contribute their currently materialized checked file descendants.
func (stateMachine *StateMachine) CheckedFiles() []string {
	var checkedFilePaths []string
	stateMachine.collectCheckedFiles(stateMachine.rootNodes, &checkedFilePaths)
	return checkedFilePaths
}

func (stateMachine *StateMachine) collectCheckedFiles(nodes []*types.Node, collected *[]string) {
	for _, node := range nodes {
		switch node.Kind {
		case types.NodeKindFile:
			if stateMachine.IsChecked(node.Path) {
				*collected = append(*collected, node.Path)
			}
		case types.NodeKindFolder:
			stateMachine.collectCheckedFiles(node.Children, collected)
		}
	}
}

// ApplyTokenCount records a computed token count for the file at path.
// Unknown paths are ignored; counts may arrive for files the walker has not
// materialized when aggregation runs ahead of expansion.
func (stateMachine *StateMachine) ApplyTokenCount(path string, tokens int) {
	node := stateMachine.nodesByPath[path]
	if node == nil || node.Kind != types.NodeKindFile {
		return
	}
	node.SetTokenCount(tokens)
}

// TotalTokens sums the known token counts over every checked file whose
// status permits counting. Unknown counts contribute zero so the total is a
// conservative undercount while aggregation is still running.
func (stateMachine *StateMachine) TotalTokens() int {
	var totalTokens int
	for _, filePath := range stateMachine.CheckedFiles() {
		node := stateMachine.nodesByPath[filePath]
		if node == nil || node.Status != types.NodeStatusNormal {
			continue
		}
		totalTokens += node.KnownTokenCount()
	}
	return totalTokens
}

// adoptPath registers a path that appeared after its parent folder was
// materialized. The parent is re-listed and newly appeared children merged
// into the arena; nodes already registered keep their identity so checks and
// token counts survive the merge.
func (stateMachine *StateMachine) adoptPath(path string) *types.Node {
	parentNode := stateMachine.nodesByPath[filepath.Dir(path)]
	if parentNode == nil || parentNode.Kind != types.NodeKindFolder || !parentNode.Materialized {
		return nil
	}
	stateMachine.mergeChildren(parentNode)
	return stateMachine.nodesByPath[path]
}

// mergeChildren refreshes a materialized folder's children from the walker,
// keeping previously registered node objects and adding new ones.
func (stateMachine *StateMachine) mergeChildren(folderNode *types.Node) {
	freshChildren := stateMachine.treeWalker.RelistChildren(folderNode.Path)
	mergedChildren := make([]*types.Node, 0, len(freshChildren))
	for _, freshChild := range freshChildren {
		if existingChild := stateMachine.nodesByPath[freshChild.Path]; existingChild != nil {
			mergedChildren = append(mergedChildren, existingChild)
			continue
		}
		stateMachine.nodesByPath[freshChild.Path] = freshChild
		mergedChildren = append(mergedChildren, freshChild)
	}
	folderNode.Children = mergedChildren
}

func (stateMachine *StateMachine) registerNodes(nodes []*types.Node) {
	for _, node := range nodes {
		stateMachine.nodesByPath[node.Path] = node
	}
}
