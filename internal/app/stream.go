package service

import (
	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/metrics"
)

const subscriberBuffer = 1

// Subscribe returns a channel receiving every new snapshot. A slow reader
// only ever sees the most recent one.
func (s *Service) Subscribe() <-chan types.Snapshot {
	ch := make(chan types.Snapshot, subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSnapshot {
		ch <- s.snapshot
	}
	s.subs[ch] = ch
	metrics.UpdateSubscribers(len(s.subs))
	return ch
}

// Unsubscribe releases a channel returned by Subscribe.
func (s *Service) Unsubscribe(ch <-chan types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.subs[ch]; ok {
		close(in)
		delete(s.subs, ch)
	}
	metrics.UpdateSubscribers(len(s.subs))
}

func (s *Service) publish(snap types.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.hasSnapshot = true
	s.counters.cycles++
	for _, in := range s.subs {
		select {
		case <-in:
		default:
		}
		select {
		case in <- snap:
		default:
		}
	}
	s.mu.Unlock()

	if s.outbox != nil {
		s.outbox.Offer(snap)
	}
}
