package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Documents are held in their JSON form so
// decoding behaves like the networked backends: callers never share maps
// with the store.
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string]map[string]any
	order map[string][]string
	newID func() string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		colls: make(map[string]map[string]map[string]any),
		order: make(map[string][]string),
		newID: uuid.NewString,
	}
}

func (m *Memory) table(name string) map[string]map[string]any {
	t, ok := m.colls[name]
	if !ok {
		t = make(map[string]map[string]any)
		m.colls[name] = t
	}
	return t
}

func (m *Memory) FindByKey(ctx context.Context, c Collection, key string, out any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.colls[c.Name][key]
	if !ok {
		return ErrNotFound
	}
	return decode(doc, out)
}

func (m *Memory) FindMatching(ctx context.Context, c Collection, filter Filter, out any) error {
	want, err := normalize(filter)
	if err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]map[string]any, 0)
	for _, key := range m.order[c.Name] {
		doc, ok := m.colls[c.Name][key]
		if ok && matches(doc, want) {
			matched = append(matched, doc)
		}
	}
	return decode(matched, out)
}

func (m *Memory) Upsert(ctx context.Context, c Collection, key string, fields any) (UpsertResult, error) {
	set, err := normalize(fields)
	if err != nil {
		return UpsertResult{}, err
	}
	delete(set, c.Key)
	if len(set) == 0 {
		return UpsertResult{}, ErrEmptyUpdate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(c.Name)
	doc, exists := t[key]
	if !exists {
		doc = map[string]any{c.Key: key}
		t[key] = doc
		m.order[c.Name] = append(m.order[c.Name], key)
	}
	for k, v := range set {
		doc[k] = v
	}
	if exists {
		return UpsertResult{Matched: 1}, nil
	}
	return UpsertResult{Upserted: true}, nil
}

func (m *Memory) Insert(ctx context.Context, c Collection, doc any) (string, error) {
	d, err := normalize(doc)
	if err != nil {
		return "", err
	}
	key := keyOf(d, c.Key)
	if key == "" {
		key = m.newID()
		d[c.Key] = key
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(c.Name)
	if _, exists := t[key]; exists {
		return "", fmt.Errorf("insert %s/%s: %w", c.Name, key, ErrDuplicateKey)
	}
	t[key] = d
	m.order[c.Name] = append(m.order[c.Name], key)
	return key, nil
}

func (m *Memory) UpdateMatching(ctx context.Context, c Collection, filter Filter, set any) (int64, error) {
	want, err := normalize(filter)
	if err != nil {
		return 0, err
	}
	fields, err := normalize(set)
	if err != nil {
		return 0, err
	}
	delete(fields, c.Key)
	if len(fields) == 0 {
		return 0, ErrEmptyUpdate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, doc := range m.colls[c.Name] {
		if !matches(doc, want) {
			continue
		}
		for k, v := range fields {
			doc[k] = v
		}
		n++
	}
	return n, nil
}

func (m *Memory) DeleteMatching(ctx context.Context, c Collection, filter Filter) (int64, error) {
	want, err := normalize(filter)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.colls[c.Name]
	var n int64
	kept := m.order[c.Name][:0]
	for _, key := range m.order[c.Name] {
		doc, ok := t[key]
		if ok && matches(doc, want) {
			delete(t, key)
			n++
			continue
		}
		kept = append(kept, key)
	}
	m.order[c.Name] = kept
	return n, nil
}

func normalize(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("document must encode to an object: %w", err)
	}
	return out, nil
}

func decode(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func matches(doc, want map[string]any) bool {
	for k, v := range want {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}
