package blobstore

import (
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	DefaultTTL             = 30 * time.Minute
	defaultCleanupInterval = time.Hour
)

type Blob struct {
	Data     []byte
	MIMEType string
}

// Store keeps generated media in memory under blob: references until they expire.
type Store struct {
	cache *cache.Cache
}

func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: cache.New(ttl, defaultCleanupInterval)}
}

func (s *Store) Put(data []byte, mimeType string) string {
	ref := model.BlobPrefix + uuid.NewString()
	s.cache.Set(ref, Blob{Data: data, MIMEType: mimeType}, cache.DefaultExpiration)
	return ref
}

func (s *Store) Get(ref string) (Blob, bool) {
	value, found := s.cache.Get(ref)
	if !found {
		return Blob{}, false
	}
	blob, ok := value.(Blob)
	return blob, ok
}

// Delete releases a blob early, the equivalent of revoking an object URL.
func (s *Store) Delete(ref string) {
	s.cache.Delete(ref)
}
