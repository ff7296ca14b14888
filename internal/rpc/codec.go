package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered with grpc's global codec registry so the
// server and any Go client dialing it negotiate "json" instead of the
// default "proto" codec.
const jsonCodecName = "json"

// jsonCodec lets this package use real google.golang.org/grpc framing,
// streaming, status codes, and cancellation without a protoc-generated
// .pb.go: messages here are plain Go structs (messages.go) marshaled
// with encoding/json instead of protobuf wire format. protoc cannot be
// invoked in this build, so generating real protobuf code was not an
// option; grpc's codec is pluggable specifically for cases like this.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
