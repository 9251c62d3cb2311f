// Package oneshot is a single-use slot carrying one value from one producer to
// one consumer.
package oneshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrDropped         = errors.New("oneshot: sender dropped before sending")
	ErrAlreadySent     = errors.New("oneshot: slot already resolved")
	ErrAlreadyReceived = errors.New("oneshot: value already received")
)

type slot[T any] struct {
	once     sync.Once
	ch       chan T
	received atomic.Bool
}

// Sender is the producing half. Exactly one of Send or Drop takes effect.
type Sender[T any] struct{ s *slot[T] }

// Receiver is the consuming half. Receive succeeds at most once.
type Receiver[T any] struct{ s *slot[T] }

// New returns the two halves of an empty slot.
func New[T any]() (*Sender[T], *Receiver[T]) {
	s := &slot[T]{ch: make(chan T, 1)}
	return &Sender[T]{s: s}, &Receiver[T]{s: s}
}

// Send stores v and wakes the receiver. It never blocks.
func (tx *Sender[T]) Send(v T) error {
	sent := false
	tx.s.once.Do(func() {
		tx.s.ch <- v
		close(tx.s.ch)
		sent = true
	})
	if !sent {
		return ErrAlreadySent
	}
	return nil
}

// Drop abandons the slot. A pending or later Receive returns ErrDropped.
// Drop after Send is a no-op.
func (tx *Sender[T]) Drop() {
	tx.s.once.Do(func() { close(tx.s.ch) })
}

// Receive suspends until the value is sent, the sender is dropped or ctx is
// done. A slot that is already resolved wins over a done ctx.
func (rx *Receiver[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	if !rx.s.received.CompareAndSwap(false, true) {
		return zero, ErrAlreadyReceived
	}
	select {
	case v, ok := <-rx.s.ch:
		return resolve(v, ok)
	default:
	}
	select {
	case v, ok := <-rx.s.ch:
		return resolve(v, ok)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func resolve[T any](v T, ok bool) (T, error) {
	if !ok {
		var zero T
		return zero, ErrDropped
	}
	return v, nil
}
