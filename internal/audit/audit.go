// Package audit keeps an append-only, in-memory log of security events.
// Logging never fails and never blocks the request path; durable storage
// is an optional asynchronous sink.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"classgate.org/internal/ids"
	"classgate.org/internal/obs"
)

// Action identifies a security-relevant event.
type Action string

const (
	ActionSignUpSuccess      Action = "SIGNUP_SUCCESS"
	ActionSignUpFailed       Action = "SIGNUP_FAILED"
	ActionSignUpRateLimited  Action = "SIGNUP_RATE_LIMITED"
	ActionSignInSuccess      Action = "SIGNIN_SUCCESS"
	ActionSignInFailed       Action = "SIGNIN_FAILED"
	ActionSignInRateLimited  Action = "SIGNIN_RATE_LIMITED"
	ActionTokenRefreshed     Action = "TOKEN_REFRESHED"
	ActionTokenRefreshFailed Action = "TOKEN_REFRESH_FAILED"
	ActionSessionDeleted     Action = "SESSION_DELETED"
)

// Entry is an immutable record of one security event. ID and Timestamp are
// assigned by the store on append.
type Entry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"ts"`
	UserID    string            `json:"user_id,omitempty"`
	Action    Action            `json:"action"`
	Resource  string            `json:"resource"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sink receives entries for external persistence. Implementations may fail;
// the store swallows sink errors so auditing stays off the critical path.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

const (
	// DefaultCapacity bounds the in-memory log before old entries rotate out.
	DefaultCapacity = 10_000

	// DefaultLimit caps Logs results when callers pass a non-positive limit.
	DefaultLimit = 100

	sinkQueueSize = 256
)

// Store is the process-wide audit log. Entries are appended under a mutex
// and never mutated afterwards; readers get copies.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	now      func() time.Time

	sinkCh chan Entry
	done   chan struct{}
}

// StoreOption configures Store behavior.
type StoreOption func(*Store)

// WithCapacity overrides the in-memory ring capacity.
func WithCapacity(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock overrides the timestamp source (useful for tests).
func WithClock(fn func() time.Time) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithSink forwards every appended entry to an external sink on a
// background goroutine. Entries are dropped, not blocked on, when the sink
// cannot keep up.
func WithSink(sink Sink) StoreOption {
	return func(s *Store) {
		if sink == nil {
			return
		}
		s.sinkCh = make(chan Entry, sinkQueueSize)
		s.done = make(chan struct{})
		go s.drain(sink)
	}
}

// NewStore constructs an empty audit log.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log appends the entry, assigning its ID and timestamp. It never fails:
// a request must not be failed because its audit record could not be taken.
// The request identifier, when present in ctx, is folded into Details.
func (s *Store) Log(ctx context.Context, entry Entry) {
	entry.ID = ids.New()
	entry.Details = copyDetails(entry.Details)
	if rid := requestIDFromContext(ctx); rid != "" {
		if entry.Details == nil {
			entry.Details = make(map[string]string, 1)
		}
		entry.Details["request_id"] = rid
	}

	s.mu.Lock()
	entry.Timestamp = s.now().UTC()
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.capacity {
		// Rotate oldest out; logically the log is still append-only.
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}
	s.mu.Unlock()

	s.emit(entry)

	if s.sinkCh != nil {
		select {
		case s.sinkCh <- entry:
		default:
		}
	}
}

// Logs returns up to limit entries, newest first, optionally filtered by
// user. The underlying log is never exposed or mutated.
func (s *Store) Logs(userID string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	userID = strings.TrimSpace(userID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if userID != "" && e.UserID != userID {
			continue
		}
		e.Details = copyDetails(e.Details)
		out = append(out, e)
	}
	return out
}

// Len reports the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the sink goroutine after draining queued entries. Safe to
// call when no sink is configured.
func (s *Store) Close() {
	if s.sinkCh == nil {
		return
	}
	close(s.sinkCh)
	<-s.done
}

func (s *Store) drain(sink Sink) {
	defer close(s.done)
	for entry := range s.sinkCh {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sink.Append(ctx, entry); err != nil {
			obs.LogError("audit sink append failed", map[string]any{
				"entry_id": entry.ID,
				"error":    err.Error(),
			})
		}
		cancel()
	}
}

// emit mirrors the entry as a structured JSON line so operators see audit
// events without querying the store.
func (s *Store) emit(entry Entry) {
	line := map[string]any{
		"ts":      entry.Timestamp.Format(time.RFC3339Nano),
		"type":    "audit",
		"event":   string(entry.Action),
		"success": entry.Success,
	}
	if entry.UserID != "" {
		line["user_id"] = entry.UserID
	}
	if entry.Resource != "" {
		line["resource"] = entry.Resource
	}
	if entry.IP != "" {
		line["ip"] = entry.IP
	}
	if len(entry.Details) > 0 {
		fields := make(map[string]any, len(entry.Details))
		for k, v := range entry.Details {
			fields[k] = v
		}
		line["fields"] = fields
	}
	obs.LogRequest(line)
}

func copyDetails(details map[string]string) map[string]string {
	if details == nil {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so entries
// logged during that request can be correlated.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id if one was attached.
func RequestIDFromContext(ctx context.Context) string {
	return requestIDFromContext(ctx)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
