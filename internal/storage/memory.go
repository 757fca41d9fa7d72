package storage

import (
	"bytes"
	"context"
	"geohost/internal/types"
	"github.com/pkg/errors"
	"io"
	"sort"
	"sync"
)

// Memory keeps objects in process. It backs the archive when no object storage is
// configured and in tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Save(ctx context.Context, location string, f types.File) error {
	defer f.Content.Close()
	b, err := io.ReadAll(f.Content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[location] = b
	return nil
}

func (m *Memory) Get(ctx context.Context, location string) (*types.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[location]
	if !ok {
		return nil, errors.Wrapf(types.ErrNotFound, "object %s", location)
	}
	return &types.File{
		Content: types.NoOpReadCloser{Reader: bytes.NewReader(b)},
		Stat:    types.FileStat{Size: int64(len(b)), Name: location},
	}, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// Keys lists stored locations in order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
