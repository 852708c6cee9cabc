package localstore

import (
	"context"
	"sync"

	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

// MemoryStore holds the raw record bytes in memory. Seeding it with raw JSON
// lets callers reproduce whatever an older client left behind.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore(seed []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), seed...)}
}

func (s *MemoryStore) Read(ctx context.Context) []models.CartLine {
	s.mu.Lock()
	data := append([]byte(nil), s.data...)
	s.mu.Unlock()
	return decodeRecord(ctx, logging.Discard(), data)
}

func (s *MemoryStore) Write(_ context.Context, lines []models.CartLine) error {
	data, err := encodeRecord(lines)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

// Raw returns a copy of the persisted bytes.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}
