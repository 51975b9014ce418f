package sync

import "mytodo/internal/domain/todo"

// engine holds the canonical in-memory collection for one user and
// reconciles optimistic local mutations with remote feed events.
//
// Every operation is a total function over the collection: a missing id is
// always a safe no-op, never an error. The engine is not safe for concurrent
// use; the owning session calls it from a single goroutine.
type engine struct {
	items []*todo.Todo

	// nextTempID hands out placeholder ids for optimistic inserts whose
	// store-assigned id is not known yet. Negative so they can never
	// collide with real row ids.
	nextTempID int64
}

func newEngine() *engine {
	return &engine{nextTempID: -1}
}

func (e *engine) lookup(id int64) *todo.Todo {
	for _, item := range e.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (e *engine) remove(id int64) bool {
	for i, item := range e.items {
		if item.ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot returns a copy of the collection in display order
// (newest-created-first, matching store insertion order).
func (e *engine) snapshot() []todo.Todo {
	out := make([]todo.Todo, len(e.items))
	for i, item := range e.items {
		out[i] = *item
	}
	return out
}

// applyLocalInsert prepends a placeholder row before the store confirms the
// create. The returned command removes it again on rollback.
func (e *engine) applyLocalInsert(params todo.CreateTodoParams) *createCmd {
	tempID := e.nextTempID
	e.nextTempID--

	pending := &todo.Todo{
		ID:       tempID,
		Text:     params.Text,
		ImageURL: params.ImageURL,
	}
	e.items = append([]*todo.Todo{pending}, e.items...)

	return &createCmd{tempID: tempID}
}

// confirmInsert replaces the placeholder with the store-assigned row. If the
// feed echo of the insert arrived first, the real row is already present and
// the placeholder is simply dropped.
func (e *engine) confirmInsert(cmd *createCmd, confirmed *todo.Todo) {
	if e.lookup(confirmed.ID) != nil {
		e.remove(cmd.tempID)
		return
	}
	for i, item := range e.items {
		if item.ID == cmd.tempID {
			row := *confirmed
			e.items[i] = &row
			return
		}
	}
	// Placeholder gone (rolled back or superseded); keep the confirmed row.
	row := *confirmed
	e.items = append([]*todo.Todo{&row}, e.items...)
}

// applyLocalFieldChange mutates the matching item in place and records the
// prior field values for rollback. Returns nil when the id is unknown.
func (e *engine) applyLocalFieldChange(id int64, params todo.UpdateTodoParams) *fieldChangeCmd {
	item := e.lookup(id)
	if item == nil {
		return nil
	}

	cmd := &fieldChangeCmd{id: id, prior: *item}
	if params.Text != nil {
		cmd.text = true
		item.Text = *params.Text
	}
	if params.Completed != nil {
		cmd.completed = true
		item.Completed = *params.Completed
	}
	return cmd
}

// applyLocalDelete removes the item immediately and records its full value
// so a rejected delete can re-insert it.
func (e *engine) applyLocalDelete(id int64) *deleteCmd {
	item := e.lookup(id)
	if item == nil {
		return nil
	}
	cmd := &deleteCmd{item: *item}
	e.remove(id)
	return cmd
}

// rollback reverses an optimistic change after the store rejected it.
func (e *engine) rollback(cmd command) {
	if cmd == nil {
		return
	}
	cmd.revert(e)
}

// applyRemoteEvent reconciles a feed event against the collection. The store
// is authoritative: remote inserts and updates fully overwrite local field
// values, last writer wins by feed arrival order. The engine does not
// distinguish its own echoed writes from another session's changes; both are
// applied identically. Returns whether the collection changed.
func (e *engine) applyRemoteEvent(ev todo.ChangeEvent) bool {
	switch ev.Kind {
	case todo.EventInsert:
		if ev.Row == nil || e.lookup(ev.Row.ID) != nil {
			// Duplicate of an insert we already hold, usually our own
			// optimistic create confirmed through the direct response.
			return false
		}
		row := *ev.Row
		e.items = append([]*todo.Todo{&row}, e.items...)
		return true

	case todo.EventUpdate:
		if ev.Row == nil {
			return false
		}
		for i, item := range e.items {
			if item.ID == ev.Row.ID {
				row := *ev.Row
				e.items[i] = &row
				return true
			}
		}
		return false

	case todo.EventDelete:
		return e.remove(ev.ID)
	}
	return false
}

// replaceAll swaps in a fresh store snapshot, used for the initial load and
// the periodic refresh fallback when the feed is unavailable.
func (e *engine) replaceAll(items []*todo.Todo) {
	e.items = make([]*todo.Todo, len(items))
	for i, item := range items {
		row := *item
		e.items[i] = &row
	}
}
