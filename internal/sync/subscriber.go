package sync

import (
	"context"

	"mytodo/internal/domain/todo"
)

// subscriberState tracks the lifecycle of one change feed subscription.
type subscriberState int

const (
	stateDetached subscriberState = iota
	stateSubscribing
	stateActive
	stateClosed
)

func (s subscriberState) String() string {
	switch s {
	case stateDetached:
		return "detached"
	case stateSubscribing:
		return "subscribing"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// subscriber owns exactly one feed subscription for one user session.
// Closed is terminal: a new session gets a new subscriber. Transport
// reconnects are the feed's own concern; while active the subscriber's
// contract is to hand over whatever the feed delivers, in order.
type subscriber struct {
	feed   todo.Feed
	userID int64

	state  subscriberState
	events <-chan todo.ChangeEvent
	cancel func()
}

func newSubscriber(feed todo.Feed, userID int64) *subscriber {
	return &subscriber{feed: feed, userID: userID, state: stateDetached}
}

// attach opens the subscription. On failure the subscriber returns to
// detached so a later attempt can try again.
func (s *subscriber) attach(ctx context.Context) error {
	if s.state == stateClosed || s.state == stateActive {
		return nil
	}
	s.state = stateSubscribing

	events, cancel, err := s.feed.Subscribe(ctx, s.userID)
	if err != nil {
		s.state = stateDetached
		return &todo.SubscriptionError{Err: err}
	}

	s.events = events
	s.cancel = cancel
	s.state = stateActive
	return nil
}

func (s *subscriber) active() bool {
	return s.state == stateActive
}

// channel returns the event stream, or nil (blocks forever in a select)
// when no subscription is open.
func (s *subscriber) channel() <-chan todo.ChangeEvent {
	if s.state != stateActive {
		return nil
	}
	return s.events
}

// markLost flags that the feed closed the stream; the owning session decides
// whether to re-attach.
func (s *subscriber) markLost() {
	if s.state == stateActive {
		s.state = stateDetached
		s.events = nil
		s.cancel = nil
	}
}

func (s *subscriber) close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.events = nil
	s.state = stateClosed
}
