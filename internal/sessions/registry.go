package sessions

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Session routes control-plane commands to the live provider session of an
// in-progress call. It is ephemeral by design: never persisted, destroyed
// when the call reaches a terminal state, and rebuilt from the call row's
// in_progress status after a process restart.
type Session struct {
	ProviderCallID string
	CallID         string
	OrgID          string
	StartedAt      time.Time
}

// Registry is a TTL cache keyed by provider call id. The TTL is a safety
// net against leaked entries when a terminal webhook never arrives; it must
// exceed the longest call the provider allows.
type Registry struct {
	c *gocache.Cache
}

const (
	defaultTTL      = 4 * time.Hour
	cleanupInterval = 10 * time.Minute
)

func NewRegistry() *Registry {
	return &Registry{c: gocache.New(defaultTTL, cleanupInterval)}
}

func NewRegistryWithTTL(ttl time.Duration) *Registry {
	return &Registry{c: gocache.New(ttl, cleanupInterval)}
}

func (r *Registry) Put(s Session) {
	if s.ProviderCallID == "" {
		return
	}
	r.c.Set(s.ProviderCallID, s, gocache.DefaultExpiration)
}

func (r *Registry) Get(providerCallID string) (Session, bool) {
	v, ok := r.c.Get(providerCallID)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

func (r *Registry) Delete(providerCallID string) {
	r.c.Delete(providerCallID)
}

func (r *Registry) Count() int {
	return r.c.ItemCount()
}
