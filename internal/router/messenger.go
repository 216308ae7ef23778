package router

import (
	"context"

	"github.com/dreamware/shardrt/internal/reply"
	"github.com/dreamware/shardrt/internal/sharding"
	"github.com/dreamware/shardrt/internal/wire"
)

// Messenger is the per-type point-to-point sender, scoped to one
// RecipientType.
type Messenger struct {
	router *Router
	rt     sharding.RecipientType
}

// Send delivers body to entityID and waits for a single reply, returning
// (nil, nil) if the target answered with no value.
func (m *Messenger) Send(ctx context.Context, entityID string, body []byte) ([]byte, error) {
	return m.router.send(ctx, m.rt, entityID, body, false)
}

// SendDiscard delivers body without waiting for or decoding a reply.
func (m *Messenger) SendDiscard(ctx context.Context, entityID string, body []byte) error {
	_, err := m.router.send(ctx, m.rt, entityID, body, true)
	return err
}

// SendStream delivers body and returns the streamed reply chunks.
func (m *Messenger) SendStream(ctx context.Context, entityID string, body []byte) (<-chan reply.StreamItem, error) {
	return m.router.sendStream(ctx, m.rt, entityID, body)
}

// TypedMessenger wraps a Messenger with wire.Codec encode/decode so callers
// exchange Go values instead of raw bytes, the way a generated client
// wraps a transport that only moves bytes.
type TypedMessenger[Req, Res any] struct {
	messenger *Messenger
	codec     wire.Codec
}

// NewTypedMessenger builds a TypedMessenger over rt using codec for
// encoding requests and decoding responses.
func NewTypedMessenger[Req, Res any](r *Router, rt sharding.RecipientType, codec wire.Codec) *TypedMessenger[Req, Res] {
	return &TypedMessenger[Req, Res]{messenger: r.Messenger(rt), codec: codec}
}

// Send encodes req, delivers it to entityID, and decodes the reply into a
// Res. If the target answered with no value, Send returns the zero Res and
// ok=false.
func (m *TypedMessenger[Req, Res]) Send(ctx context.Context, entityID string, req Req) (res Res, ok bool, err error) {
	body, err := m.codec.Encode(req)
	if err != nil {
		return res, false, err
	}
	out, err := m.messenger.Send(ctx, entityID, body)
	if err != nil {
		return res, false, err
	}
	if out == nil {
		return res, false, nil
	}
	if err := m.codec.Decode(out, &res); err != nil {
		return res, false, err
	}
	return res, true, nil
}

// SendDiscard encodes req and delivers it without waiting for a reply.
func (m *TypedMessenger[Req, Res]) SendDiscard(ctx context.Context, entityID string, req Req) error {
	body, err := m.codec.Encode(req)
	if err != nil {
		return err
	}
	return m.messenger.SendDiscard(ctx, entityID, body)
}
