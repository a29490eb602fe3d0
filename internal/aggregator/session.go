package aggregator

import "sync"

// RequestState is the lifecycle of one directory aggregation request.
type RequestState string

const (
	StatePending   RequestState = "pending"
	StateRunning   RequestState = "running"
	StateDone      RequestState = "done"
	StateCancelled RequestState = "cancelled"
	StateFailed    RequestState = "failed"
)

// Session tracks one batch of aggregation requests: how many were issued,
// how many have settled, and the per-directory totals. Workers never touch a
// session; only the requesting side and the drain loop mutate it, guarded by
// a mutex because requests may be issued while a drain is in flight.
type Session struct {
	mutex              sync.Mutex
	requested          int
	completed          int
	states             map[string]RequestState
	perDirectoryTotals map[string]int
}

// NewSession constructs an empty aggregation session.
func NewSession() *Session {
	return &Session{
		states:             make(map[string]RequestState),
		perDirectoryTotals: make(map[string]int),
	}
}

// Requested returns the number of requests issued in this session, cached
// replays included.
func (session *Session) Requested() int {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.requested
}

// Completed returns the number of requests that have settled.
func (session *Session) Completed() int {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.completed
}

// Pending returns the number of requests still outstanding.
func (session *Session) Pending() int {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.requested - session.completed
}

// State returns the recorded state for directoryPath.
func (session *Session) State(directoryPath string) RequestState {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.states[directoryPath]
}

// DirectoryTotal returns the settled total for directoryPath, if any.
func (session *Session) DirectoryTotal(directoryPath string) (int, bool) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	total, known := session.perDirectoryTotals[directoryPath]
	return total, known
}

// TotalTokens sums every settled directory total in the session.
func (session *Session) TotalTokens() int {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	var totalTokens int
	for _, directoryTotal := range session.perDirectoryTotals {
		totalTokens += directoryTotal
	}
	return totalTokens
}

func (session *Session) recordRequested(directoryPath string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.requested++
	session.states[directoryPath] = StatePending
}

// recordCached settles a memoized directory immediately: it counts as both
// requested and completed without a worker run.
func (session *Session) recordCached(directoryPath string, totalTokens int) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.requested++
	session.completed++
	session.states[directoryPath] = StateDone
	session.perDirectoryTotals[directoryPath] = totalTokens
}

func (session *Session) recordRunning(directoryPath string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.states[directoryPath] = StateRunning
}

func (session *Session) recordSettled(directoryPath string, state RequestState, totalTokens int, memoize bool) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.completed++
	session.states[directoryPath] = state
	if memoize {
		session.perDirectoryTotals[directoryPath] = totalTokens
	}
}

// DrainHandlers receives per-file callbacks while a session drains.
type DrainHandlers struct {
	OnProgress  func(path string, tokens int)
	OnFileError func(path string, err error)
}

// Drain consumes worker events until every request in session has settled.
// It is the single writer of the token cache: directory totals are memoized
// here on Done and never on Cancelled or Failed, so an interrupted walk must
// be recomputed in full on the next request.
func (aggregator *Aggregator) Drain(session *Session, handlers DrainHandlers) {
	for session.Pending() > 0 {
		event := <-aggregator.events
		switch event.Kind {
		case EventStarted:
			session.recordRunning(event.Directory)
		case EventProgress:
			if handlers.OnProgress != nil {
				handlers.OnProgress(event.Path, event.Tokens)
			}
		case EventFileError:
			if handlers.OnFileError != nil {
				handlers.OnFileError(event.Path, event.Err)
			}
		case EventDone:
			aggregator.cache.Add(event.Directory, event.Tokens)
			session.recordSettled(event.Directory, StateDone, event.Tokens, true)
		case EventCancelled:
			session.recordSettled(event.Directory, StateCancelled, 0, false)
		case EventFailed:
			session.recordSettled(event.Directory, StateFailed, 0, false)
		}
	}
}
