package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu                sync.RWMutex
	sessionEvents     []*SessionEvent
	transactionEvents []*TransactionEvent
	publishError      error
	closed            bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishSessionEvent records the event and returns any configured error.
func (m *MockPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.sessionEvents = append(m.sessionEvents, event)
	return nil
}

// PublishTransaction records the event and returns any configured error.
func (m *MockPublisher) PublishTransaction(ctx context.Context, event *TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.transactionEvents = append(m.transactionEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SessionEvents returns a copy of the published session events.
func (m *MockPublisher) SessionEvents() []*SessionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*SessionEvent(nil), m.sessionEvents...)
}

// TransactionEvents returns a copy of the published transaction events.
func (m *MockPublisher) TransactionEvents() []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*TransactionEvent(nil), m.transactionEvents...)
}

// SetPublishError configures the mock to fail every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
