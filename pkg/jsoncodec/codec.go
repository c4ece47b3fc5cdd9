// Package jsoncodec lets Connect handlers and clients exchange plain Go
// structs as JSON instead of generated protobuf messages.
package jsoncodec

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Name matches the codec name Connect associates with application/json.
const Name = "json"

type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string {
	return Name
}

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", msg, err)
	}
	return nil
}

// Option registers the codec on a handler or client.
func Option() connect.Option {
	return connect.WithCodec(Codec{})
}
