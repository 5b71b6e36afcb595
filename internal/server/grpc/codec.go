package grpc

import (
	json "github.com/goccy/go-json"
	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype clients select with
// grpc.CallContentSubtype to talk to the gatekeeper services.
const codecName = "json"

// jsonCodec carries plain Go structs over gRPC as JSON documents.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
