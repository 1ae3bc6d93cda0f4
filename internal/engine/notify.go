package engine

import (
	"context"
	"sync"

	"github.com/roach88/caras/internal/model"
)

// Broker fans committed changes out to in-process subscribers.
//
// Publishing never blocks: every subscription buffers without bound and the
// subscriber drains at its own pace. Cross-process readers poll the durable
// change log instead (Store.Changes).
type Broker struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBroker creates a broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in one campaign's changes. An empty
// campaignID receives every campaign.
//
// Subscribing to a closed broker returns an already-closed subscription.
func (b *Broker) Subscribe(campaignID string) *Subscription {
	s := &Subscription{
		campaignID: campaignID,
		broker:     b,
		changes:    make([]model.Change, 0, 16),
		signal:     make(chan struct{}, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.close()
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers c to every matching subscription.
func (b *Broker) Publish(c model.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if s.campaignID == "" || s.campaignID == c.CampaignID {
			s.push(c)
		}
	}
}

// Close closes every subscription. Subsequent publishes are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.close()
	}
	b.subs = map[*Subscription]struct{}{}
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Subscription is a FIFO of changes for one subscriber.
//
// A buffered signal channel of size 1 coalesces wakeups, so Next can wait
// on it alongside ctx.Done().
type Subscription struct {
	campaignID string
	broker     *Broker

	mu      sync.Mutex
	changes []model.Change
	closed  bool
	signal  chan struct{}
}

func (s *Subscription) push(c model.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.changes = append(s.changes, c)
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// TryNext returns the oldest pending change without blocking.
func (s *Subscription) TryNext() (model.Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.changes) == 0 {
		return model.Change{}, false
	}
	c := s.changes[0]
	s.changes[0] = model.Change{}
	if len(s.changes) == 1 {
		s.changes = s.changes[:0]
	} else {
		s.changes = s.changes[1:]
	}
	return c, true
}

// Next blocks until a change is available, ctx is done or the subscription
// is closed. Pending changes are still delivered after Close.
// Returns (Change{}, false, nil) once closed and drained.
func (s *Subscription) Next(ctx context.Context) (model.Change, bool, error) {
	for {
		if c, ok := s.TryNext(); ok {
			return c, true, nil
		}
		s.mu.Lock()
		done := s.closed
		s.mu.Unlock()
		if done {
			return model.Change{}, false, nil
		}

		select {
		case <-ctx.Done():
			return model.Change{}, false, ctx.Err()
		case <-s.signal:
		}
	}
}

// Len returns the number of pending changes.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changes)
}

// Close detaches the subscription from its broker and wakes any waiter.
func (s *Subscription) Close() {
	s.broker.remove(s)
	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.signal)
}
