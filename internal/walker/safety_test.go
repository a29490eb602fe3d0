package walker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/digest/internal/walker"
)

func TestTraversalSessionRecordsCanonicalPaths(t *testing.T) {
	rootDirectory := t.TempDir()
	session := walker.NewTraversalSession()

	if !session.IsSafe(rootDirectory) {
		t.Fatalf("first visit of %s must be safe", rootDirectory)
	}
	if session.IsSafe(rootDirectory) {
		t.Fatalf("second visit of %s must be unsafe", rootDirectory)
	}
}

func TestTraversalSessionDetectsSymlinkAlias(t *testing.T) {
	rootDirectory := t.TempDir()
	targetDirectory := filepath.Join(rootDirectory, "target")
	if makeError := os.Mkdir(targetDirectory, 0o755); makeError != nil {
		t.Fatalf("mkdir failed: %v", makeError)
	}
	aliasPath := filepath.Join(rootDirectory, "alias")
	if linkError := os.Symlink(targetDirectory, aliasPath); linkError != nil {
		t.Skipf("symlinks unavailable: %v", linkError)
	}

	session := walker.NewTraversalSession()
	if !session.IsSafe(targetDirectory) {
		t.Fatalf("target directory must be safe on first visit")
	}
	if session.IsSafe(aliasPath) {
		t.Fatalf("alias resolving to a visited directory must be unsafe")
	}
}

func TestTraversalSessionUnresolvablePathIsUnsafe(t *testing.T) {
	session := walker.NewTraversalSession()
	missingPath := filepath.Join(t.TempDir(), "missing")
	if session.IsSafe(missingPath) {
		t.Fatalf("unresolvable path must be unsafe")
	}
}

func TestTraversalSessionReset(t *testing.T) {
	rootDirectory := t.TempDir()
	session := walker.NewTraversalSession()

	if !session.IsSafe(rootDirectory) {
		t.Fatalf("first visit must be safe")
	}
	session.Reset()
	if !session.IsSafe(rootDirectory) {
		t.Fatalf("visit after Reset must be safe again")
	}
}
