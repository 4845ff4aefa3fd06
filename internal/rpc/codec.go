package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Encode wraps the JSON form of v into a protobuf BytesValue.
func Encode(v any) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return wrapperspb.Bytes(b), nil
}

// Decode unpacks a BytesValue produced by Encode into v.
func Decode(in *wrapperspb.BytesValue, v any) error {
	if in == nil || len(in.GetValue()) == 0 {
		return nil
	}
	if err := json.Unmarshal(in.GetValue(), v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
