package transport

import (
	"google.golang.org/grpc/encoding"

	"github.com/dreamware/shardrt/internal/wire"
)

// jsonSubtype is the grpc content-subtype this package's client and server
// agree on, registered below in place of protobuf wire encoding.
const jsonSubtype = "json"

type jsonGRPCCodec struct {
	codec wire.Codec
}

func (c jsonGRPCCodec) Marshal(v any) ([]byte, error)      { return c.codec.Encode(v) }
func (c jsonGRPCCodec) Unmarshal(data []byte, v any) error { return c.codec.Decode(data, v) }
func (c jsonGRPCCodec) Name() string                       { return jsonSubtype }

func init() {
	encoding.RegisterCodec(jsonGRPCCodec{codec: wire.JSON{}})
}
