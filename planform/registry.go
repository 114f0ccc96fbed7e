package planform

import (
	"sync"
	"time"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/metrics"
	"github.com/google/uuid"
)

// MessageSessionNotFound is returned for unknown or expired form sessions
const MessageSessionNotFound = "Form session not found"

type session struct {
	form     *Form
	lastUsed time.Time
}

// Registry keeps the open form sessions. A session that is not used for
// longer than the TTL is dropped by ExpireIdle, which discards its unsaved
// working copy.
type Registry struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*session

	now   func() time.Time
	newID func() string
}

// NewRegistry creates an empty registry
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Open registers form and returns its session id
func (r *Registry) Open(form *Form) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	r.sessions[id] = &session{form: form, lastUsed: r.now()}
	metrics.FormSessionsActive.Set(float64(len(r.sessions)))
	return id
}

// Get returns the form of a session and marks it as used
func (r *Registry) Get(id string) (*Form, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, MessageSessionNotFound)
	}
	s.lastUsed = r.now()
	return s.form, nil
}

// Discard drops a session; unknown ids are ignored
func (r *Registry) Discard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	metrics.FormSessionsActive.Set(float64(len(r.sessions)))
}

// ExpireIdle drops the sessions idle for longer than the TTL and returns
// how many were dropped. Sessions with a save in flight are kept.
func (r *Registry) ExpireIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	expired := 0
	for id, s := range r.sessions {
		if s.lastUsed.Before(cutoff) && !s.form.Saving() {
			delete(r.sessions, id)
			expired++
		}
	}
	metrics.FormSessionsActive.Set(float64(len(r.sessions)))

	if expired > 0 {
		logging.Info("Expired idle form sessions", "count", expired, "remaining", len(r.sessions))
	}
	return expired
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
