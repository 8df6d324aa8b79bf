package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockResolver is a file URL resolver backed by a map. When URLs is nil,
// every filename resolves to Prefix + filename.
type MockResolver struct {
	mu    sync.Mutex
	calls []string

	URLs   map[string]string
	Prefix string
	Err    error
}

// ResolveFileURL records the call and returns the configured URL.
func (m *MockResolver) ResolveFileURL(ctx context.Context, accession, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, filename)
	if m.Err != nil {
		return "", m.Err
	}
	if m.URLs == nil {
		return m.Prefix + filename, nil
	}
	u, ok := m.URLs[filename]
	if !ok {
		return "", fmt.Errorf("no url for %s in %s", filename, accession)
	}
	return u, nil
}

// Calls returns the filenames resolved so far.
func (m *MockResolver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockSink keeps written runsheets in memory.
type MockSink struct {
	mu    sync.Mutex
	files map[string][]byte

	Err error
}

// Write stores data under name.
func (m *MockSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[name] = buf
	return "mem://" + name, nil
}

// Names returns the written names in sorted order.
func (m *MockSink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for n := range m.files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// File returns the content written under name.
func (m *MockSink) File(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	return b, ok
}
