package sync

import "mytodo/internal/domain/todo"

// A pending mutation is a command that carries enough prior state to generate
// its own inverse. It exists only for the duration of one store round-trip:
// created when the optimistic change is applied, reverted if the store
// rejects the write, discarded otherwise.
type command interface {
	revert(e *engine)
}

// createCmd records an optimistic insert under a placeholder id.
// Reverting a failed create removes the placeholder row.
type createCmd struct {
	tempID int64
}

func (c *createCmd) revert(e *engine) {
	e.remove(c.tempID)
}

// fieldChangeCmd records the prior values of the fields an optimistic update
// touched. Reverting restores exactly those fields.
type fieldChangeCmd struct {
	id        int64
	prior     todo.Todo
	text      bool
	completed bool
}

func (c *fieldChangeCmd) revert(e *engine) {
	item := e.lookup(c.id)
	if item == nil {
		// Deleted remotely during the round-trip; nothing to restore.
		return
	}
	if c.text {
		item.Text = c.prior.Text
	}
	if c.completed {
		item.Completed = c.prior.Completed
	}
	item.UpdatedAt = c.prior.UpdatedAt
}

// deleteCmd records the full removed item. Reverting a failed delete puts the
// item back in the collection; presence is guaranteed, position is not.
type deleteCmd struct {
	item todo.Todo
}

func (c *deleteCmd) revert(e *engine) {
	if e.lookup(c.item.ID) != nil {
		return
	}
	restored := c.item
	e.items = append([]*todo.Todo{&restored}, e.items...)
}
