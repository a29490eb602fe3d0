// Package types defines the cross-package data structures used by the digest CLI.
package types

// NodeKind identifies what kind of filesystem entry a Node represents.
type NodeKind string

const (
	NodeKindFile    NodeKind = "file"
	NodeKindFolder  NodeKind = "folder"
	NodeKindSymlink NodeKind = "symlink"
)

// NodeStatus captures the traversal outcome for a Node.
type NodeStatus string

const (
	NodeStatusNormal       NodeStatus = "normal"
	NodeStatusExcluded     NodeStatus = "excluded"
	NodeStatusBinary       NodeStatus = "binary"
	NodeStatusUnreadable   NodeStatus = "unreadable"
	NodeStatusSkippedCycle NodeStatus = "skipped_cycle"
)

// Node is one browsable filesystem entry. Children are populated lazily and
// only for folders. TokenCount stays nil until a count has been computed.
type Node struct {
	Path       string
	Name       string
	Kind       NodeKind
	Status     NodeStatus
	TokenCount *int
	Children   []*Node
	// Materialized reports whether Children reflects an actual directory
	// listing rather than a lazy placeholder.
	Materialized bool
	// Target holds the resolved destination for symlink nodes.
	Target string
	// ErrText carries the failure description for unreadable nodes.
	ErrText string
}

// IsSelectable reports whether the node may enter the selection set.
func (node *Node) IsSelectable() bool {
	if node == nil {
		return false
	}
	if node.Kind == NodeKindSymlink {
		return false
	}
	return node.Status != NodeStatusExcluded && node.Status != NodeStatusSkippedCycle
}

// SetTokenCount records a computed token count on the node.
func (node *Node) SetTokenCount(tokens int) {
	node.TokenCount = &tokens
}

// KnownTokenCount returns the computed token count, or 0 when none is known.
func (node *Node) KnownTokenCount() int {
	if node.TokenCount == nil {
		return 0
	}
	return *node.TokenCount
}
