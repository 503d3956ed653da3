package broker

import "sync"

// mockSink implements MemberSink, recording everything the broker delivers.
type mockSink struct {
	mu         sync.Mutex
	frames     [][]byte
	directives []blockDirective
	shutdowns  []string
}

type blockDirective struct {
	name  string
	block bool
}

func (m *mockSink) Deliver(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame)
}

func (m *mockSink) ControlBlock(name string, block bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directives = append(m.directives, blockDirective{name: name, block: block})
}

func (m *mockSink) Shutdown(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdowns = append(m.shutdowns, reason)
}

func (m *mockSink) frameStrings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.frames))
	for i, f := range m.frames {
		out[i] = string(f)
	}
	return out
}

func (m *mockSink) directiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.directives)
}

func (m *mockSink) shutdownCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shutdowns)
}
