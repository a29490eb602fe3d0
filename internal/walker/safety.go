package walker

import "path/filepath"

// TraversalSession tracks the canonical form of every path visited during one
// top-level walk so that symlink cycles are detected before recursing. The
// session is a conservative guard: re-visiting the same directory twice before
// a Reset is flagged as unsafe even when no cycle exists.
type TraversalSession struct {
	visitedPaths map[string]struct{}
}

// NewTraversalSession constructs an empty traversal session.
func NewTraversalSession() *TraversalSession {
	return &TraversalSession{visitedPaths: make(map[string]struct{})}
}

// IsSafe resolves path to its canonical symlink-free form and reports whether
// it is safe to traverse. A path whose canonical form was already visited, or
// that cannot be resolved at all, is unsafe. Safe paths are recorded.
func (session *TraversalSession) IsSafe(path string) bool {
	canonicalPath, resolveError := filepath.EvalSymlinks(path)
	if resolveError != nil {
		return false
	}
	if _, visited := session.visitedPaths[canonicalPath]; visited {
		return false
	}
	session.visitedPaths[canonicalPath] = struct{}{}
	return true
}

// Reset clears the visited set. It must be called at the start of every
// top-level, user-initiated re-walk of a root; lazy per-folder expansion
// reuses the session.
func (session *TraversalSession) Reset() {
	session.visitedPaths = make(map[string]struct{})
}
