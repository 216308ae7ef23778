package reply

import (
	"errors"
	"sync"
)

var (
	errSendChannelClosed     = errors.New("send channel closed")
	errSingleSendAlreadyUsed = errors.New("single send channel already used")
)

// SendChannel is the producer-side counterpart to Channel: the handle a
// caller holds while delivering one or more request payloads into an
// entity's mailbox. A Single SendChannel accepts exactly one Send; a Stream
// SendChannel accepts any number, terminated by Close.
type SendChannel interface {
	Send(body []byte) error
	Close() error
}

// mailboxSend adapts an enqueue function (normally Mailbox.Enqueue) into a
// SendChannel, optionally pairing every delivered Envelope with a reply
// Channel the entity answers through.
type mailboxSend struct {
	mu      sync.Mutex
	enqueue func(Envelope) error
	reply   Channel
	stream  bool
	sent    bool
	closed  bool
}

// NewSingleSend returns a SendChannel that accepts exactly one Send call
// before closing itself.
func NewSingleSend(enqueue func(Envelope) error, r Channel) SendChannel {
	return &mailboxSend{enqueue: enqueue, reply: r, stream: false}
}

// NewStreamSend returns a SendChannel that accepts any number of Send calls
// until the caller invokes Close.
func NewStreamSend(enqueue func(Envelope) error, r Channel) SendChannel {
	return &mailboxSend{enqueue: enqueue, reply: r, stream: true}
}

func (s *mailboxSend) Send(body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stream && s.sent {
		return errSingleSendAlreadyUsed
	}
	if s.closed {
		return errSendChannelClosed
	}
	if !s.stream {
		s.sent = true
		s.closed = true
	}
	return s.enqueue(Envelope{Body: body, Reply: s.reply})
}

func (s *mailboxSend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
