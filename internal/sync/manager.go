package sync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"mytodo/internal/domain/todo"
)

// ErrManagerClosed is returned by Acquire after the manager shut down.
var ErrManagerClosed = errors.New("session manager closed")

// Manager owns the sync sessions, one per user with at least one attached
// consumer. A session is created on first acquire and torn down when the
// last holder releases it, so the feed carries exactly one subscription per
// active user at any time.
type Manager struct {
	repo  todo.Repository
	blobs todo.AttachmentStore
	feed  todo.Feed

	refreshInterval time.Duration

	mu       sync.Mutex
	sessions map[int64]*managedSession
	closed   bool
}

type managedSession struct {
	session *Session
	holders int
}

func NewManager(repo todo.Repository, blobs todo.AttachmentStore, feed todo.Feed, refreshInterval time.Duration) *Manager {
	return &Manager{
		repo:            repo,
		blobs:           blobs,
		feed:            feed,
		refreshInterval: refreshInterval,
		sessions:        make(map[int64]*managedSession),
	}
}

// Acquire returns the user's session, creating and starting it when this is
// the user's first attached consumer. The release func must be called once
// the consumer is done; the last release tears the session down.
func (m *Manager) Acquire(ctx context.Context, userID int64) (*Session, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrManagerClosed
	}

	ms, ok := m.sessions[userID]
	if !ok {
		ms = &managedSession{session: newSession(userID, m.repo, m.blobs, m.feed, m.refreshInterval)}
		m.sessions[userID] = ms
		// Session lifetime is bound to the manager, not to the first
		// request that created it.
		ms.session.start(context.Background())
		log.Printf("User %d: sync session started", userID)
	}
	ms.holders++
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { m.release(userID, ms) })
	}
	return ms.session, release, nil
}

func (m *Manager) release(userID int64, ms *managedSession) {
	m.mu.Lock()
	ms.holders--
	last := ms.holders == 0 && m.sessions[userID] == ms
	if last {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if last {
		ms.session.close()
		log.Printf("User %d: sync session stopped", userID)
	}
}

// Close tears down every live session. Subsequent Acquire calls fail.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*managedSession, 0, len(m.sessions))
	for id, ms := range m.sessions {
		sessions = append(sessions, ms)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, ms := range sessions {
		ms.session.close()
	}
}
