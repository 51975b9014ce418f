package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"mytodo/internal/domain/todo"
)

// ErrSessionClosed is returned by session operations after teardown.
var ErrSessionClosed = errors.New("sync session closed")

const defaultRefreshInterval = 30 * time.Second

// Session keeps one user's todo collection consistent across connected
// clients: local mutations are applied optimistically before the store
// round-trip and rolled back on rejection, while change feed events from
// other sessions (or echoes of our own writes) are reconciled as they arrive.
//
// All collection state is owned by a single goroutine; mutations and feed
// deliveries are messages interleaved on that one loop, so no locking guards
// the collection itself.
type Session struct {
	userID int64
	repo   todo.Repository
	blobs  todo.AttachmentStore
	sub    *subscriber

	eng     *engine
	loading bool

	refreshInterval time.Duration

	acts   chan func()
	stop   chan struct{}
	done   chan struct{}
	loaded chan struct{}

	// watcher state, loop-owned like the collection
	watchers    map[int]chan []todo.Todo
	nextWatcher int
}

func newSession(userID int64, repo todo.Repository, blobs todo.AttachmentStore, feed todo.Feed, refreshInterval time.Duration) *Session {
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return &Session{
		userID:          userID,
		repo:            repo,
		blobs:           blobs,
		sub:             newSubscriber(feed, userID),
		eng:             newEngine(),
		loading:         true,
		refreshInterval: refreshInterval,
		acts:            make(chan func(), 16),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
		loaded:          make(chan struct{}),
		watchers:        make(map[int]chan []todo.Todo),
	}
}

// start opens the feed subscription, kicks off the initial load and runs the
// reconciliation loop. Subscribing before the load means no event emitted
// during the load window is missed; duplicates reconcile to no-ops.
func (s *Session) start(ctx context.Context) {
	if err := s.sub.attach(ctx); err != nil {
		log.Printf("User %d: live sync unavailable, falling back to periodic refresh: %v", s.userID, err)
	}

	go s.loop(ctx)

	go func() {
		items, err := s.repo.ListByOwner(ctx, s.userID)
		if err != nil {
			log.Printf("User %d: initial todo load failed: %v", s.userID, err)
			items = nil
		}
		if err := s.exec(ctx, func() {
			if items != nil {
				s.eng.replaceAll(items)
			}
			s.loading = false
			s.broadcast()
		}); err == nil {
			close(s.loaded)
		}
	}()
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-s.acts:
			fn()

		case ev, ok := <-s.sub.channel():
			if !ok {
				s.sub.markLost()
				continue
			}
			if s.eng.applyRemoteEvent(ev) {
				s.broadcast()
			}

		case <-ticker.C:
			if s.sub.active() {
				continue
			}
			// Feed is down: refresh from the store and try to re-attach.
			if items, err := s.repo.ListByOwner(ctx, s.userID); err == nil {
				s.eng.replaceAll(items)
				s.broadcast()
			} else {
				log.Printf("User %d: fallback refresh failed: %v", s.userID, err)
			}
			if err := s.sub.attach(ctx); err == nil && s.sub.active() {
				log.Printf("User %d: live sync restored", s.userID)
			}

		case <-s.stop:
			s.teardown()
			return
		case <-ctx.Done():
			s.teardown()
			return
		}
	}
}

func (s *Session) teardown() {
	s.sub.close()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
}

// exec runs fn on the loop goroutine and waits for it to finish.
func (s *Session) exec(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		fn()
		close(ran)
	}

	select {
	case s.acts <- wrapped:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// settle runs engine bookkeeping that must happen once a store round-trip
// has resolved, even when the request context died mid-flight (the caller
// disconnecting must not strand an optimistic change in the shared
// collection). Only session teardown skips it.
func (s *Session) settle(fn func()) {
	s.exec(context.Background(), fn)
}

// broadcast pushes the current snapshot to every watcher, coalescing when a
// watcher has not drained the previous one yet. Called on the loop goroutine.
func (s *Session) broadcast() {
	snap := s.eng.snapshot()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Ready blocks until the initial load has settled, successfully or not.
func (s *Session) Ready(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the reconciled collection and the loading flag.
func (s *Session) Snapshot(ctx context.Context) ([]todo.Todo, bool, error) {
	var snap []todo.Todo
	var loading bool
	err := s.exec(ctx, func() {
		snap = s.eng.snapshot()
		loading = s.loading
	})
	if err != nil {
		return nil, false, err
	}
	return snap, loading, nil
}

// Watch registers a watcher that receives a collection snapshot after every
// change. The returned cancel func must be called when the consumer goes away.
func (s *Session) Watch(ctx context.Context) (<-chan []todo.Todo, func(), error) {
	ch := make(chan []todo.Todo, 1)
	var id int
	err := s.exec(ctx, func() {
		id = s.nextWatcher
		s.nextWatcher++
		s.watchers[id] = ch
		ch <- s.eng.snapshot()
	})
	if err != nil {
		return nil, nil, err
	}

	cancel := func() {
		s.exec(context.Background(), func() {
			if c, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

// Create inserts a new todo: optimistic prepend first, then the store write.
// A store rejection removes the speculative row again.
func (s *Session) Create(ctx context.Context, params todo.CreateTodoParams) (*todo.Todo, error) {
	if err := params.Validate(); err != nil {
		return nil, &todo.ValidationError{Reason: err.Error()}
	}

	var cmd *createCmd
	if err := s.exec(ctx, func() {
		cmd = s.eng.applyLocalInsert(params)
		s.broadcast()
	}); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, s.userID, params)
	if err != nil {
		s.settle(func() {
			s.eng.rollback(cmd)
			s.broadcast()
		})
		return nil, &todo.StoreWriteError{Op: "create", Err: err}
	}

	s.settle(func() {
		s.eng.confirmInsert(cmd, created)
		s.broadcast()
	})
	return created, nil
}

// UpdateText changes an item's text optimistically, then persists it.
func (s *Session) UpdateText(ctx context.Context, id int64, text string) (*todo.Todo, error) {
	params := todo.UpdateTodoParams{Text: &text}
	if err := params.Validate(); err != nil {
		return nil, &todo.ValidationError{Reason: err.Error()}
	}

	var cmd *fieldChangeCmd
	if err := s.exec(ctx, func() {
		cmd = s.eng.applyLocalFieldChange(id, params)
		if cmd != nil {
			s.broadcast()
		}
	}); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, todo.ErrTodoNotFound
	}

	updated, err := s.repo.UpdateText(ctx, id, text)
	if err != nil {
		s.settle(func() {
			s.eng.rollback(cmd)
			s.broadcast()
		})
		if errors.Is(err, todo.ErrTodoNotFound) {
			return nil, err
		}
		return nil, &todo.StoreWriteError{Op: "update", Err: err}
	}
	return updated, nil
}

// SetCompletion toggles the completion flag. The store write touches only
// the completion column, never text or attachment.
func (s *Session) SetCompletion(ctx context.Context, id int64, completed bool) (*todo.Todo, error) {
	var cmd *fieldChangeCmd
	if err := s.exec(ctx, func() {
		cmd = s.eng.applyLocalFieldChange(id, todo.UpdateTodoParams{Completed: &completed})
		if cmd != nil {
			s.broadcast()
		}
	}); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, todo.ErrTodoNotFound
	}

	updated, err := s.repo.SetCompleted(ctx, id, completed)
	if err != nil {
		s.settle(func() {
			s.eng.rollback(cmd)
			s.broadcast()
		})
		if errors.Is(err, todo.ErrTodoNotFound) {
			return nil, err
		}
		return nil, &todo.StoreWriteError{Op: "toggle", Err: err}
	}
	return updated, nil
}

// Delete removes an item. The attachment is removed from the blob store
// before the row delete is issued; if blob removal fails the row delete does
// not proceed, so a row never points at a missing blob. A stray blob from the
// opposite failure order is the accepted lesser harm.
func (s *Session) Delete(ctx context.Context, id int64) error {
	var cmd *deleteCmd
	if err := s.exec(ctx, func() {
		cmd = s.eng.applyLocalDelete(id)
		if cmd != nil {
			s.broadcast()
		}
	}); err != nil {
		return err
	}
	if cmd == nil {
		return todo.ErrTodoNotFound
	}

	if cmd.item.ImageURL != nil {
		if err := s.blobs.Delete(ctx, s.userID, *cmd.item.ImageURL); err != nil {
			s.settle(func() {
				s.eng.rollback(cmd)
				s.broadcast()
			})
			var delErr *todo.DeleteError
			if errors.As(err, &delErr) {
				return err
			}
			return &todo.DeleteError{Err: err}
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, todo.ErrTodoNotFound) {
			// Already gone remotely; the optimistic removal stands.
			return nil
		}
		s.settle(func() {
			s.eng.rollback(cmd)
			s.broadcast()
		})
		return &todo.StoreWriteError{Op: "delete", Err: err}
	}
	return nil
}

// UploadAttachment validates and uploads a candidate image, returning the
// reference to attach to a create. Validation runs before any I/O.
func (s *Session) UploadAttachment(ctx context.Context, filename, contentType string, data []byte) (*todo.AttachmentRef, error) {
	if err := todo.ValidateAttachment(contentType, int64(len(data))); err != nil {
		return nil, err
	}

	ref, err := s.blobs.Upload(ctx, s.userID, filename, contentType, data)
	if err != nil {
		var upErr *todo.UploadError
		if errors.As(err, &upErr) {
			return nil, err
		}
		return nil, &todo.UploadError{Err: err}
	}
	return ref, nil
}

// RemoveAttachment deletes an uploaded blob that never made it onto a row,
// e.g. when the user discards a pending create. Best-effort for callers.
func (s *Session) RemoveAttachment(ctx context.Context, url string) error {
	if err := s.blobs.Delete(ctx, s.userID, url); err != nil {
		var delErr *todo.DeleteError
		if errors.As(err, &delErr) {
			return err
		}
		return &todo.DeleteError{Err: err}
	}
	return nil
}

// LiveSync reports whether the change feed subscription is currently active.
func (s *Session) LiveSync(ctx context.Context) bool {
	active := false
	s.exec(ctx, func() { active = s.sub.active() })
	return active
}

// close tears down the loop, the subscription and all watchers.
func (s *Session) close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}
