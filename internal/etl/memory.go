package etl

import (
	"context"
	"sync"
)

// MemoryDestination keeps loaded records in memory. The CLI uses it for
// dry runs; tests use the hooks to inject failures.
type MemoryDestination struct {
	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
	// DeclareFunc, when set, can reject a collection declaration.
	DeclareFunc func(name string, schema *Schema) error
	// InsertFunc, when set, can reject individual writes.
	InsertFunc func(ref CollectionRef, rec Record) error

	mu          sync.Mutex
	collections map[string]*Schema
	docs        map[string][]Record
	connects    int
	disconnects int
}

// Connect opens an in-memory session.
func (m *MemoryDestination) Connect(_ context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return nil, m.ConnectErr
	}
	m.connects++
	if m.collections == nil {
		m.collections = make(map[string]*Schema)
		m.docs = make(map[string][]Record)
	}
	return &memorySession{dest: m}, nil
}

// Schema returns the schema a collection was declared with.
func (m *MemoryDestination) Schema(name string) (*Schema, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.collections[name]
	return s, ok
}

// Documents returns the records stored in a collection.
func (m *MemoryDestination) Documents(name string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.docs[name]...)
}

// Count returns the number of stored records across all collections.
func (m *MemoryDestination) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.docs {
		n += len(d)
	}
	return n
}

// Sessions returns how many sessions were opened and closed.
func (m *MemoryDestination) Sessions() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects, m.disconnects
}

type memorySession struct {
	dest *MemoryDestination
}

func (s *memorySession) DeclareCollection(_ context.Context, name string, schema *Schema) (CollectionRef, error) {
	m := s.dest
	if m.DeclareFunc != nil {
		if err := m.DeclareFunc(name, schema); err != nil {
			return CollectionRef{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = schema
	}
	return CollectionRef{Name: name, Schema: schema}, nil
}

func (s *memorySession) Insert(_ context.Context, ref CollectionRef, rec Record) error {
	m := s.dest
	if m.InsertFunc != nil {
		if err := m.InsertFunc(ref, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[ref.Name] = append(m.docs[ref.Name], rec)
	return nil
}

func (s *memorySession) Disconnect(_ context.Context) error {
	s.dest.mu.Lock()
	defer s.dest.mu.Unlock()
	s.dest.disconnects++
	return nil
}
