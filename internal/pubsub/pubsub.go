// Package pubsub fans download task events out to any number of subscribers.
// The presentation layer subscribes for UI updates while tests and the CLI
// subscribe independently; a slow or closed subscriber never blocks the
// session.
package pubsub

import (
	"errors"
	"sync"
)

const (
	DefaultPublisherBufSize  = 1
	DefaultSubscriberBufSize = 16
)

var ErrPublisherClosed = errors.New("publisher closed")

type Sender[T any] interface {
	Send(T) bool
}

type Receiver[T any] interface {
	Receive() <-chan T
}

type Closer interface {
	Close()
}

type SenderCloser[T any] interface {
	Sender[T]
	Closer
}

type ReceiverCloser[T any] interface {
	Receiver[T]
	Closer
}

// Channel wraps a primitive chan in state management that makes Send safe
// against concurrent Close.
type Channel[T any] interface {
	Sender[T]
	Receiver[T]
	Closer
}

type channel[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	done    chan struct{}
	closed  bool
	waiting sync.WaitGroup
}

// NewChannel creates a new channel of the specified type and buffer size.
func NewChannel[T any](bufSize int) Channel[T] {
	return &channel[T]{
		ch:   make(chan T, bufSize),
		done: make(chan struct{}),
	}
}

// Receive returns a channel receiver for awaiting the next message.
func (c *channel[T]) Receive() <-chan T {
	return c.ch
}

// Send attempts to send a message, returning false if the channel is closed
// or closes while the send is blocked.
func (c *channel[T]) Send(msg T) bool {
	// Either the send is never attempted, or Close() waits for it to finish.
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	c.waiting.Add(1)
	defer c.waiting.Done()
	c.mu.RUnlock()

	select {
	case c.ch <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Close idempotently ends the channel so that all current and future Send
// calls fail.
func (c *channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	close(c.done)    // Stop blocked senders
	c.waiting.Wait() // Wait for them to exit
	close(c.ch)      // Notify receivers
	c.closed = true
}

// Publisher delivers every Send to all current subscribers.
type Publisher[T any] interface {
	SenderCloser[T]
	Subscribe() (ReceiverCloser[T], error)
	SubscribeBufSize(int) (ReceiverCloser[T], error)
}

type publisher[T any] struct {
	mu          sync.Mutex
	ch          Channel[T]
	running     sync.WaitGroup // Fanout goroutine in progress
	pending     sync.WaitGroup // Messages not yet delivered to all subscribers
	subscribers map[SenderCloser[T]]struct{}
	closed      bool
}

func NewPublisher[T any]() Publisher[T] {
	p := &publisher[T]{
		ch:          NewChannel[T](DefaultPublisherBufSize),
		subscribers: make(map[SenderCloser[T]]struct{}),
	}
	p.running.Add(1)
	go p.fanout()
	return p
}

func (p *publisher[T]) fanout() {
	defer p.running.Done()
	for v := range p.ch.Receive() {
		// Snapshot subscribers so Subscribe is never blocked by delivery.
		p.mu.Lock()
		subs := make([]SenderCloser[T], 0, len(p.subscribers))
		for s := range p.subscribers {
			subs = append(subs, s)
		}
		p.mu.Unlock()
		for _, s := range subs {
			if ok := s.Send(v); !ok {
				p.unsubscribe(s)
			}
		}
		p.pending.Done()
	}
}

// Send publishes the value to all subscribers without blocking on any of
// them. Returns false once the publisher is closed.
func (p *publisher[T]) Send(msg T) bool {
	p.pending.Add(1)
	if ok := p.ch.Send(msg); !ok {
		p.pending.Done()
		return false
	}
	return true
}

func (p *publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	return p.SubscribeBufSize(DefaultSubscriberBufSize)
}

func (p *publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPublisherClosed
	}
	s := NewChannel[T](bufSize)
	p.subscribers[s] = struct{}{}
	return s, nil
}

func (p *publisher[T]) unsubscribe(s SenderCloser[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, s)
}

// Close idempotently shuts down the publisher, flushing pending messages and
// closing all subscribers.
func (p *publisher[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.ch.Close()
	p.pending.Wait()
	p.running.Wait()

	p.mu.Lock()
	subs := make([]SenderCloser[T], 0, len(p.subscribers))
	for s := range p.subscribers {
		subs = append(subs, s)
	}
	p.subscribers = make(map[SenderCloser[T]]struct{})
	p.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}
