// Package notification keeps the transient messages shown to a dashboard
// user. Each message dismisses itself after a fixed lifetime unless held.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindError   Kind = "error"
	KindSuccess Kind = "success"
)

const (
	DefaultLifetime    = 5000 * time.Millisecond
	DefaultResumeAfter = 2500 * time.Millisecond
)

type Notification struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
	// DismissAt is zero while the notification is held.
	DismissAt time.Time `json:"dismissAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type entry struct {
	Notification
	timer Timer
	// gen invalidates callbacks of timers that were superseded.
	gen uint64
}

type Registry struct {
	mu          sync.Mutex
	items       []*entry
	sched       Scheduler
	lifetime    time.Duration
	resumeAfter time.Duration
	log         zerolog.Logger
	onAdd       func(Notification)

	subs    map[int]chan []Notification
	nextSub int
	closed  bool
}

type Option func(*Registry)

func WithScheduler(s Scheduler) Option {
	return func(r *Registry) { r.sched = s }
}

func WithTimings(lifetime, resumeAfter time.Duration) Option {
	return func(r *Registry) {
		if lifetime > 0 {
			r.lifetime = lifetime
		}
		if resumeAfter > 0 {
			r.resumeAfter = resumeAfter
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithAddHook is called after every Add, outside the registry lock.
func WithAddHook(fn func(Notification)) Option {
	return func(r *Registry) { r.onAdd = fn }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sched:       SystemScheduler{},
		lifetime:    DefaultLifetime,
		resumeAfter: DefaultResumeAfter,
		log:         zerolog.Nop(),
		subs:        make(map[int]chan []Notification),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add appends a message and schedules its removal after the lifetime.
func (r *Registry) Add(message string, kind Kind) Notification {
	r.mu.Lock()
	now := r.sched.Now()
	e := &entry{
		Notification: Notification{
			ID:        uuid.NewString(),
			Message:   message,
			Kind:      kind,
			CreatedAt: now,
		},
	}
	if !r.closed {
		r.items = append(r.items, e)
		r.scheduleLocked(e, r.lifetime)
		r.publishLocked()
	}
	n := e.Notification
	r.mu.Unlock()

	r.log.Debug().
		Str("notification_id", n.ID).
		Str("kind", string(kind)).
		Msg("notification added")
	if r.onAdd != nil {
		r.onAdd(n)
	}
	return n
}

// Hold cancels the pending removal. Unknown ids are ignored.
func (r *Registry) Hold(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.findLocked(id)
	if e == nil {
		return
	}
	r.stopLocked(e)
	r.publishLocked()
}

// Resume schedules removal after the shorter resume interval, measured
// from now. Unknown ids are ignored.
func (r *Registry) Resume(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.findLocked(id)
	if e == nil {
		return
	}
	r.scheduleLocked(e, r.resumeAfter)
	r.publishLocked()
}

// Remove drops the notification immediately. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removeLocked(id) {
		r.publishLocked()
	}
}

func (r *Registry) List() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Subscribe returns a feed of the full list after every change. The
// channel holds only the latest list; slow readers skip intermediate ones.
func (r *Registry) Subscribe() (<-chan []Notification, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan []Notification, 1)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	ch <- r.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if sub, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops every timer, empties the registry and ends all feeds.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, e := range r.items {
		r.stopLocked(e)
	}
	r.items = nil
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
}

func (r *Registry) expire(id string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.findLocked(id)
	if e == nil || e.gen != gen {
		return
	}
	e.timer = nil
	r.removeLocked(id)
	r.publishLocked()
}

func (r *Registry) scheduleLocked(e *entry, after time.Duration) {
	r.stopLocked(e)
	gen := e.gen
	id := e.ID
	e.DismissAt = r.sched.Now().Add(after)
	e.timer = r.sched.AfterFunc(after, func() { r.expire(id, gen) })
}

func (r *Registry) stopLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.DismissAt = time.Time{}
}

func (r *Registry) findLocked(id string) *entry {
	for _, e := range r.items {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r *Registry) removeLocked(id string) bool {
	for i, e := range r.items {
		if e.ID != id {
			continue
		}
		r.stopLocked(e)
		r.items = append(r.items[:i:i], r.items[i+1:]...)
		return true
	}
	return false
}

func (r *Registry) snapshotLocked() []Notification {
	out := make([]Notification, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, e.Notification)
	}
	return out
}

func (r *Registry) publishLocked() {
	if len(r.subs) == 0 {
		return
	}
	list := r.snapshotLocked()
	for _, ch := range r.subs {
		select {
		case ch <- list:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- list
		}
	}
}
