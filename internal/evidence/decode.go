package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errEmptyPayload = errors.New("empty payload")

// decodePayload turns a lookup payload into a fresh T. Typed values are copied;
// JSON bytes and decoded JSON objects are unmarshalled, so the caller's bundle is
// never aliased by the normalized result.
func decodePayload[T any](payload any) (T, error) {
	var out T
	switch p := payload.(type) {
	case nil:
		return out, errEmptyPayload
	case T:
		return p, nil
	case *T:
		if p == nil {
			return out, errEmptyPayload
		}
		return *p, nil
	case json.RawMessage:
		return unmarshalPayload[T](p)
	case []byte:
		return unmarshalPayload[T](p)
	case string:
		return unmarshalPayload[T]([]byte(p))
	case map[string]any:
		data, err := json.Marshal(p)
		if err != nil {
			return out, fmt.Errorf("re-encode payload: %w", err)
		}
		return unmarshalPayload[T](data)
	default:
		return out, fmt.Errorf("unsupported payload type %T", payload)
	}
}

func unmarshalPayload[T any](data []byte) (T, error) {
	var out T
	if len(data) == 0 {
		return out, errEmptyPayload
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
