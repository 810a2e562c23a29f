// Copyright 2025 James Ross
package objectstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. It is primarily for unit tests
// and local development, mirroring the role the teacher's
// MemoryIdempotencyStorage plays alongside a Redis-backed implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	objs map[string]memObj
}

type memObj struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objs: make(map[string]memObj)}
}

func fullKey(container, path string) string {
	return container + "/" + path
}

func (m *MemoryStore) UploadJSON(ctx context.Context, container, path string, data any, ifNoneMatch bool) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return m.put(container, path, b, "application/json", ifNoneMatch)
}

func (m *MemoryStore) UploadText(ctx context.Context, container, path, text, contentType string) error {
	return m.put(container, path, []byte(text), contentType, false)
}

func (m *MemoryStore) UploadBinary(ctx context.Context, container, path string, data []byte, contentType string) error {
	return m.put(container, path, data, contentType, false)
}

func (m *MemoryStore) put(container, path string, data []byte, contentType string, ifNoneMatch bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fullKey(container, path)
	if ifNoneMatch {
		if _, exists := m.objs[key]; exists {
			return ErrConflict
		}
	}
	m.objs[key] = memObj{data: append([]byte(nil), data...), contentType: contentType, lastModified: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) DownloadJSON(ctx context.Context, container, path string, v any) error {
	b, err := m.get(container, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (m *MemoryStore) DownloadText(ctx context.Context, container, path string) (string, error) {
	b, err := m.get(container, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m *MemoryStore) DownloadBinary(ctx context.Context, container, path string) ([]byte, error) {
	return m.get(container, path)
}

func (m *MemoryStore) get(container, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objs[fullKey(container, path)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), o.data...), nil
}

func (m *MemoryStore) List(ctx context.Context, container, prefix string, modifiedSince time.Time) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fullPrefix := fullKey(container, prefix)
	var out []ObjectInfo
	for k, o := range m.objs {
		if !strings.HasPrefix(k, fullPrefix) {
			continue
		}
		if !modifiedSince.IsZero() && o.lastModified.Before(modifiedSince) {
			continue
		}
		rel := strings.TrimPrefix(k, fullKey(container, ""))
		out = append(out, ObjectInfo{Path: rel, Size: int64(len(o.data)), LastModified: o.lastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, container, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, fullKey(container, path))
	return nil
}

func (m *MemoryStore) Copy(ctx context.Context, srcContainer, srcPath, dstContainer, dstPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.objs[fullKey(srcContainer, srcPath)]
	if !ok {
		return ErrNotFound
	}
	m.objs[fullKey(dstContainer, dstPath)] = memObj{
		data:         append([]byte(nil), src.data...),
		contentType:  src.contentType,
		lastModified: time.Now().UTC(),
	}
	return nil
}
