package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryTree is an in-process TreeStore for local runs and tests. It follows
// the hosted store's write semantics: empty nodes vanish and server
// timestamps use the tree's own clock.
type MemoryTree struct {
	mu   sync.RWMutex
	root interface{}
	ids  *PushIDGenerator
	now  func() time.Time
}

func NewMemoryTree() *MemoryTree {
	return NewMemoryTreeWithClock(time.Now)
}

func NewMemoryTreeWithClock(now func() time.Time) *MemoryTree {
	return &MemoryTree{
		ids: NewPushIDGenerator(now),
		now: now,
	}
}

func (m *MemoryTree) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("get", path, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	node := getIn(m.root, splitPath(path))
	if node == nil {
		return false, nil
	}
	if err := decodeInto(node, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryTree) Set(ctx context.Context, path string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", path, err)
	}
	v, err := prepare(value, m.now().UnixMilli())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = setIn(m.root, splitPath(path), v)
	return nil
}

func (m *MemoryTree) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := m.ids.Next()
	if err := m.Set(ctx, cleanPath(path)+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *MemoryTree) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return unavailable("update", path, err)
	}

	now := m.now().UnixMilli()
	prepared := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		p, err := prepare(v, now)
		if err != nil {
			return err
		}
		prepared[k] = p
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	base := splitPath(path)
	for k, v := range prepared {
		parts := append(append([]string(nil), base...), splitPath(k)...)
		m.root = setIn(m.root, parts, v)
	}
	return nil
}

func (m *MemoryTree) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = setIn(m.root, splitPath(path), nil)
	return nil
}
