// Package chatv1 defines the chat.v1.ChatService gRPC contract: request and
// response types, the service descriptor and a client. Messages travel as
// JSON under the "json" content-subtype.
package chatv1

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype clients must send.
const CodecName = "json"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}
