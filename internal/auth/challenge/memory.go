package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/aussiebroadwan/projectx/pkg/cryptox"
)

// slot guards one user's pending code. dead is set when Sweep unlinks the
// slot from the map; holders of a dead slot must look it up again.
type slot struct {
	mu      sync.Mutex
	pending *domain.PendingChallenge
	dead    bool
}

// MemoryStore keeps codes in process memory. Everything is lost on restart
// and codes are not shared between instances.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]*slot
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore returns an empty store. A non-positive ttl means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		slots: make(map[string]*slot),
		ttl:   ttl,
		now:   time.Now,
	}
}

// lock returns the live slot for userID with its mutex held.
func (s *MemoryStore) lock(userID string) *slot {
	for {
		s.mu.Lock()
		sl, ok := s.slots[userID]
		if !ok {
			sl = &slot{}
			s.slots[userID] = sl
		}
		s.mu.Unlock()

		sl.mu.Lock()
		if !sl.dead {
			return sl
		}
		sl.mu.Unlock()
	}
}

func (s *MemoryStore) Issue(ctx context.Context, userID string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	sl := s.lock(userID)
	defer sl.mu.Unlock()

	sl.pending = &domain.PendingChallenge{
		UserID:    userID,
		Code:      cryptox.FingerprintToken(code),
		ExpiresAt: s.now().Add(s.ttl),
	}
	return code, nil
}

func (s *MemoryStore) Verify(ctx context.Context, userID, candidate string) error {
	sl := s.lock(userID)
	defer sl.mu.Unlock()

	p := sl.pending
	switch {
	case p == nil:
		return ErrNotFound
	case p.Expired(s.now()):
		sl.pending = nil
		return ErrExpired
	case !cryptox.MatchFingerprint(candidate, p.Code):
		return ErrMismatch
	}

	sl.pending = nil
	return nil
}

// Sweep drops expired and empty entries and reports how many codes expired.
func (s *MemoryStore) Sweep(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, sl := range s.slots {
		// Skip slots someone is using right now; the next sweep gets them.
		if !sl.mu.TryLock() {
			continue
		}
		if sl.pending != nil && sl.pending.Expired(now) {
			sl.pending = nil
			expired++
		}
		if sl.pending == nil {
			sl.dead = true
			delete(s.slots, id)
		}
		sl.mu.Unlock()
	}
	return expired
}

// Len reports how many users have a pending code. Expired codes that haven't
// been swept yet are counted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.Unlock()

	n := 0
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.pending != nil {
			n++
		}
		sl.mu.Unlock()
	}
	return n
}
