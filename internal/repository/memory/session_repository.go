package memory

import (
	"time"

	"ai-tutor-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

const DefaultSessionTTL = time.Hour

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (r *SessionRepository) Save(session *store.StudentSession) {
	c := session.Clone()
	c.UpdatedAt = time.Now()
	r.cache.Set(c.StudentID, c, cache.DefaultExpiration)
}

// Get returns a copy, so callers may modify it before saving it back.
func (r *SessionRepository) Get(studentID string) (*store.StudentSession, bool) {
	if x, found := r.cache.Get(studentID); found {
		return x.(*store.StudentSession).Clone(), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(studentID string) {
	r.cache.Delete(studentID)
}
