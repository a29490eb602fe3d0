// Package aggregator computes subtree token totals off the interactive path.
// Each requested directory runs as an independent worker goroutine reporting
// per-file progress over a shared event channel; totals are memoized per
// directory only when a walk completes uncancelled.
package aggregator

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/digest/internal/tokenizer"
	"github.com/temirov/digest/internal/utils"
	"github.com/temirov/digest/internal/walker"
)

// EventKind discriminates aggregation events.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventFileError EventKind = "file_error"
	EventDone      EventKind = "done"
	EventCancelled EventKind = "cancelled"
	EventFailed    EventKind = "failed"
)

// Event is one message from a worker to the consumer loop. Progress and
// file-error events carry a file path; terminal events carry the directory
// total where applicable.
type Event struct {
	Kind      EventKind
	Directory string
	Path      string
	Tokens    int
	Err       error
}

// eventChannelCapacity bounds the worker-to-consumer channel.
const eventChannelCapacity = 128

// defaultCacheSize bounds the number of memoized directory totals.
const defaultCacheSize = 1024

// warningWalkFormat is used when a directory walk aborts unexpectedly.
const warningWalkFormat = "aggregation walk failed for %s: %v"

// Aggregator runs directory token aggregations. The cache is mutated only by
// the consumer loop (Drain); workers communicate exclusively through the
// event channel. Cancellation is a single shared flag checked at every file
// boundary.
type Aggregator struct {
	counter    tokenizer.Counter
	rootPath   string
	matcher    *walker.ExclusionMatcher
	extensions []string
	cache      *lru.Cache[string, int]
	events     chan Event
	cancelled  atomic.Bool
	logger     *zap.Logger
}

// New constructs an Aggregator counting with counter. Exclusion is evaluated
// against paths relative to rootPath, matching the browse-time filter.
func New(counter tokenizer.Counter, rootPath string, matcher *walker.ExclusionMatcher, extensions []string, logger *zap.Logger) (*Aggregator, error) {
	directoryCache, cacheError := lru.New[string, int](defaultCacheSize)
	if cacheError != nil {
		return nil, fmt.Errorf("create directory token cache: %w", cacheError)
	}
	if matcher == nil {
		matcher = walker.NewExclusionMatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		counter:    counter,
		rootPath:   filepath.Clean(rootPath),
		matcher:    matcher,
		extensions: extensions,
		cache:      directoryCache,
		events:     make(chan Event, eventChannelCapacity),
		logger:     logger,
	}, nil
}

// Events exposes the worker event channel to the consumer loop.
func (aggregator *Aggregator) Events() <-chan Event {
	return aggregator.events
}

// CachedTotal returns the memoized total for directoryPath, if any.
func (aggregator *Aggregator) CachedTotal(directoryPath string) (int, bool) {
	return aggregator.cache.Get(filepath.Clean(directoryPath))
}

// Invalidate purges every memoized directory total. Callers must invalidate
// on exclusion, filter, or root changes before re-requesting.
func (aggregator *Aggregator) Invalidate() {
	aggregator.cache.Purge()
}

// Cancel requests cooperative cancellation of every running worker. Workers
// exit at their next file boundary and report Cancelled instead of Done.
func (aggregator *Aggregator) Cancel() {
	aggregator.cancelled.Store(true)
}

// ResetCancellation re-arms the aggregator after a cancelled batch.
func (aggregator *Aggregator) ResetCancellation() {
	aggregator.cancelled.Store(false)
}

// Request starts a background aggregation for directoryPath and records it
// in session. A directory with a memoized total is a no-op: the cached total
// is replayed into the session without starting a worker.
func (aggregator *Aggregator) Request(session *Session, directoryPath string) {
	cleanedDirectoryPath := filepath.Clean(directoryPath)
	if cachedTotal, cached := aggregator.cache.Get(cleanedDirectoryPath); cached {
		session.recordCached(cleanedDirectoryPath, cachedTotal)
		return
	}
	session.recordRequested(cleanedDirectoryPath)
	go aggregator.runWorker(cleanedDirectoryPath)
}

// RequestAll starts aggregations for several directories with bounded
// concurrency, recording each in session before returning. RequestAll never
// blocks on worker progress: requests are recorded synchronously and workers
// are dispatched from a separate goroutine, so the caller can drain the event
// channel immediately. Waiting for slow workers here would fill the bounded
// event channel with nobody consuming it.
func (aggregator *Aggregator) RequestAll(session *Session, directoryPaths []string, concurrencyLimit int) {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 4
	}
	var pendingDirectoryPaths []string
	for _, directoryPath := range directoryPaths {
		cleanedDirectoryPath := filepath.Clean(directoryPath)
		if cachedTotal, cached := aggregator.cache.Get(cleanedDirectoryPath); cached {
			session.recordCached(cleanedDirectoryPath, cachedTotal)
			continue
		}
		session.recordRequested(cleanedDirectoryPath)
		pendingDirectoryPaths = append(pendingDirectoryPaths, cleanedDirectoryPath)
	}
	go func() {
		var workGroup errgroup.Group
		workGroup.SetLimit(concurrencyLimit)
		for _, pendingDirectoryPath := range pendingDirectoryPaths {
			workGroup.Go(func() error {
				aggregator.runWorker(pendingDirectoryPath)
				return nil
			})
		}
		_ = workGroup.Wait()
	}()
}

// runWorker walks one directory, emitting per-file progress and a single
// terminal event. Per-file failures are reported and skipped; only a failure
// to walk the directory itself is terminal.
func (aggregator *Aggregator) runWorker(directoryPath string) {
	aggregator.events <- Event{Kind: EventStarted, Directory: directoryPath}

	var totalTokens int
	walkError := filepath.WalkDir(directoryPath, func(walkedPath string, directoryEntry fs.DirEntry, accessError error) error {
		if aggregator.cancelled.Load() {
			return errCancelled
		}
		if accessError != nil {
			aggregator.events <- Event{Kind: EventFileError, Directory: directoryPath, Path: walkedPath, Err: accessError}
			if directoryEntry != nil && directoryEntry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relativePath := utils.RelativePathOrSelf(walkedPath, aggregator.rootPath)
		if walkedPath != directoryPath && aggregator.matcher.ShouldExclude(relativePath) {
			if directoryEntry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if directoryEntry.IsDir() || directoryEntry.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !aggregator.matchesExtensionFilter(directoryEntry.Name()) {
			return nil
		}
		if utils.IsFileBinary(walkedPath) {
			return nil
		}

		countResult, countError := tokenizer.CountFile(aggregator.counter, walkedPath)
		if countError != nil {
			aggregator.events <- Event{Kind: EventFileError, Directory: directoryPath, Path: walkedPath, Err: countError}
			return nil
		}
		if !countResult.Counted {
			return nil
		}
		totalTokens += countResult.Tokens
		aggregator.events <- Event{Kind: EventProgress, Directory: directoryPath, Path: walkedPath, Tokens: countResult.Tokens}
		return nil
	})

	switch {
	case errors.Is(walkError, errCancelled):
		aggregator.events <- Event{Kind: EventCancelled, Directory: directoryPath}
	case walkError != nil:
		aggregator.logger.Warn(fmt.Sprintf(warningWalkFormat, directoryPath, walkError))
		aggregator.events <- Event{Kind: EventFailed, Directory: directoryPath, Err: walkError}
	default:
		aggregator.events <- Event{Kind: EventDone, Directory: directoryPath, Tokens: totalTokens}
	}
}

func (aggregator *Aggregator) matchesExtensionFilter(fileName string) bool {
	if len(aggregator.extensions) == 0 {
		return true
	}
	lowerFileName := strings.ToLower(fileName)
	for _, extension := range aggregator.extensions {
		if strings.HasSuffix(lowerFileName, strings.ToLower(extension)) {
			return true
		}
	}
	return false
}

// errCancelled is the sentinel used to unwind WalkDir on cancellation.
var errCancelled = errors.New("aggregation cancelled")
