package aggregator_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/digest/internal/aggregator"
	"github.com/temirov/digest/internal/walker"
)

// runeCounter counts one token per rune so fixture totals are predictable.
type runeCounter struct{}

func (runeCounter) Name() string {
	return "rune"
}

func (runeCounter) CountString(input string) (int, error) {
	return len([]rune(input)), nil
}

func writeAggregationFixture(t *testing.T) (string, int) {
	t.Helper()
	rootDirectory := t.TempDir()
	nestedDirectory := filepath.Join(rootDirectory, "src")
	if makeError := os.MkdirAll(nestedDirectory, 0o755); makeError != nil {
		t.Fatalf("mkdir failed: %v", makeError)
	}

	firstContent := "print(1)\n"
	secondContent := "x = 2\n"
	if writeError := os.WriteFile(filepath.Join(rootDirectory, "a.py"), []byte(firstContent), 0o644); writeError != nil {
		t.Fatalf("writing fixture failed: %v", writeError)
	}
	if writeError := os.WriteFile(filepath.Join(nestedDirectory, "b.py"), []byte(secondContent), 0o644); writeError != nil {
		t.Fatalf("writing fixture failed: %v", writeError)
	}
	return rootDirectory, len([]rune(firstContent)) + len([]rune(secondContent))
}

func TestRequestDrainComputesAndMemoizes(t *testing.T) {
	rootDirectory, expectedTotal := writeAggregationFixture(t)

	tokenAggregator, newError := aggregator.New(runeCounter{}, rootDirectory, nil, nil, nil)
	if newError != nil {
		t.Fatalf("New failed: %v", newError)
	}

	session := aggregator.NewSession()
	tokenAggregator.Request(session, rootDirectory)
	tokenAggregator.Drain(session, aggregator.DrainHandlers{})

	if session.State(rootDirectory) != aggregator.StateDone {
		t.Fatalf("request must settle done, got %v", session.State(rootDirectory))
	}
	if sessionTotal := session.TotalTokens(); sessionTotal != expectedTotal {
		t.Fatalf("session total = %d, expected %d", sessionTotal, expectedTotal)
	}

	cachedTotal, cached := tokenAggregator.CachedTotal(rootDirectory)
	if !cached || cachedTotal != expectedTotal {
		t.Fatalf("completed walk must be memoized: cached=%v total=%d", cached, cachedTotal)
	}
}

func TestRequestReplaysCachedTotalWithoutWorker(t *testing.T) {
	rootDirectory, expectedTotal := writeAggregationFixture(t)

	tokenAggregator, newError := aggregator.New(runeCounter{}, rootDirectory, nil, nil, nil)
	if newError != nil {
		t.Fatalf("New failed: %v", newError)
	}

	firstSession := aggregator.NewSession()
	tokenAggregator.Request(firstSession, rootDirectory)
	tokenAggregator.Drain(firstSession, aggregator.DrainHandlers{})

	var replayProgressCount int
	secondSession := aggregator.NewSession()
	tokenAggregator.Request(secondSession, rootDirectory)
	tokenAggregator.Drain(secondSession, aggregator.DrainHandlers{
		OnProgress: func(string, int) { replayProgressCount++ },
	})

	if secondSession.Requested() != 1 || secondSession.Completed() != 1 {
		t.Fatalf("cached replay must settle immediately: requested=%d completed=%d", secondSession.Requested(), secondSession.Completed())
	}
	if replayProgressCount != 0 {
		t.Fatalf("cached replay must emit no per-file progress, got %d events", replayProgressCount)
	}
	if sessionTotal := secondSession.TotalTokens(); sessionTotal != expectedTotal {
		t.Fatalf("replayed total = %d, expected %d", sessionTotal, expectedTotal)
	}
}

func TestCancelledWalkIsNeverMemoized(t *testing.T) {
	rootDirectory, expectedTotal := writeAggregationFixture(t)

	tokenAggregator, newError := aggregator.New(runeCounter{}, rootDirectory, nil, nil, nil)
	if newError != nil {
		t.Fatalf("New failed: %v", newError)
	}

	tokenAggregator.Cancel()
	cancelledSession := aggregator.NewSession()
	tokenAggregator.Request(cancelledSession, rootDirectory)
	tokenAggregator.Drain(cancelledSession, aggregator.DrainHandlers{})

	if cancelledSession.State(rootDirectory) != aggregator.StateCancelled {
		t.Fatalf("request must settle cancelled, got %v", cancelledSession.State(rootDirectory))
	}
	if _, cached := tokenAggregator.CachedTotal(rootDirectory); cached {
		t.Fatalf("cancelled walk must leave no cache entry")
	}

	tokenAggregator.ResetCancellation()
	retrySession := aggregator.NewSession()
	tokenAggregator.Request(retrySession, rootDirectory)
	tokenAggregator.Drain(retrySession, aggregator.DrainHandlers{})

	if retrySession.State(rootDirectory) != aggregator.StateDone {
		t.Fatalf("retry must settle done, got %v", retrySession.State(rootDirectory))
	}
	if retryTotal := retrySession.TotalTokens(); retryTotal != expectedTotal {
		t.Fatalf("retry must recompute the full total: got %d, expected %d", retryTotal, expectedTotal)
	}
}

func TestWorkerSkipsExcludedAndBinaryFiles(t *testing.T) {
	rootDirectory := t.TempDir()
	excludedDirectory := filepath.Join(rootDirectory, "node_modules")
	if makeError := os.MkdirAll(excludedDirectory, 0o755); makeError != nil {
		t.Fatalf("mkdir failed: %v", makeError)
	}
	textContent := "total\n"
	if writeError := os.WriteFile(filepath.Join(rootDirectory, "kept.py"), []byte(textContent), 0o644); writeError != nil {
		t.Fatalf("writing fixture failed: %v", writeError)
	}
	if writeError := os.WriteFile(filepath.Join(excludedDirectory, "dep.js"), []byte("ignored\n"), 0o644); writeError != nil {
		t.Fatalf("writing fixture failed: %v", writeError)
	}
	if writeError := os.WriteFile(filepath.Join(rootDirectory, "image.png"), []byte{0, 1, 2, 3}, 0o644); writeError != nil {
		t.Fatalf("writing fixture failed: %v", writeError)
	}

	tokenAggregator, newError := aggregator.New(runeCounter{}, rootDirectory, walker.NewDefaultExclusionMatcher(), nil, nil)
	if newError != nil {
		t.Fatalf("New failed: %v", newError)
	}

	var progressPaths []string
	session := aggregator.NewSession()
	tokenAggregator.Request(session, rootDirectory)
	tokenAggregator.Drain(session, aggregator.DrainHandlers{
		OnProgress: func(path string, tokens int) { progressPaths = append(progressPaths, path) },
	})

	if sessionTotal := session.TotalTokens(); sessionTotal != len([]rune(textContent)) {
		t.Fatalf("total must cover kept.py only, got %d", sessionTotal)
	}
	if len(progressPaths) != 1 || filepath.Base(progressPaths[0]) != "kept.py" {
		t.Fatalf("progress must cover kept.py only, got %v", progressPaths)
	}
}

func TestRequestAllDoesNotBlockOnChannelCapacity(t *testing.T) {
	directoryCount := 8
	filesPerDirectory := 40
	fileContent := "x\n"

	rootDirectory := t.TempDir()
	directoryPaths := make([]string, 0, directoryCount)
	for directoryIndex := 0; directoryIndex < directoryCount; directoryIndex++ {
		directoryPath := filepath.Join(rootDirectory, fmt.Sprintf("dir%02d", directoryIndex))
		if makeError := os.MkdirAll(directoryPath, 0o755); makeError != nil {
			t.Fatalf("mkdir failed: %v", makeError)
		}
		for fileIndex := 0; fileIndex < filesPerDirectory; fileIndex++ {
			filePath := filepath.Join(directoryPath, fmt.Sprintf("file%02d.py", fileIndex))
			if writeError := os.WriteFile(filePath, []byte(fileContent), 0o644); writeError != nil {
				t.Fatalf("writing fixture failed: %v", writeError)
			}
		}
		directoryPaths = append(directoryPaths, directoryPath)
	}

	tokenAggregator, newError := aggregator.New(runeCounter{}, rootDirectory, nil, nil, nil)
	if newError != nil {
		t.Fatalf("New failed: %v", newError)
	}

	// More directories than the concurrency limit and more per-file events
	// than the event channel holds: the request phase must return with all
	// requests recorded so the drain loop can start consuming.
	session := aggregator.NewSession()
	tokenAggregator.RequestAll(session, directoryPaths, 4)
	if session.Requested() != directoryCount {
		t.Fatalf("all requests must be recorded before draining, got %d", session.Requested())
	}
	tokenAggregator.Drain(session, aggregator.DrainHandlers{})

	if session.Completed() != directoryCount {
		t.Fatalf("every directory must settle, got %d of %d", session.Completed(), directoryCount)
	}
	expectedTotal := directoryCount * filesPerDirectory * len([]rune(fileContent))
	if sessionTotal := session.TotalTokens(); sessionTotal != expectedTotal {
		t.Fatalf("session total = %d, expected %d", sessionTotal, expectedTotal)
	}
}

func TestDirectoryTotalPerRequest(t *testing.T) {
	rootDirectory, _ := writeAggregationFixture(t)
	nestedDirectory := filepath.Join(rootDirectory, "src")

	tokenAggregator, newError := aggregator.New(runeCounter{}, rootDirectory, nil, nil, nil)
	if newError != nil {
		t.Fatalf("New failed: %v", newError)
	}

	session := aggregator.NewSession()
	tokenAggregator.RequestAll(session, []string{rootDirectory, nestedDirectory}, 2)
	tokenAggregator.Drain(session, aggregator.DrainHandlers{})

	nestedTotal, known := session.DirectoryTotal(nestedDirectory)
	if !known {
		t.Fatalf("nested directory total must be recorded")
	}
	if nestedTotal != len([]rune("x = 2\n")) {
		t.Fatalf("nested total = %d, expected %d", nestedTotal, len([]rune("x = 2\n")))
	}
	if session.Completed() != 2 {
		t.Fatalf("both requests must settle, got %d", session.Completed())
	}
}
