package storage

import "encoding/json"

// Ensure JSONCodec implements Codec interface.
var _ Codec[any, any] = (*JSONCodec[any, any])(nil)

// JSONCodec encodes keys and values as JSON.
//
// Encoded keys sort like the unencoded keys only for fixed-length ASCII
// strings, such as the ksuids used by the history log.
type JSONCodec[K, V any] struct{}

// EncodeKey encodes a key into a JSON byte slice for a storage backend.
func (c *JSONCodec[K, V]) EncodeKey(key K) ([]byte, error) {
	return json.Marshal(key)
}

// DecodeKey decodes a JSON byte slice into a key from a storage backend.
func (c *JSONCodec[K, V]) DecodeKey(data []byte) (K, error) {
	var key K
	err := json.Unmarshal(data, &key)
	return key, err
}

// EncodeValue encodes a value into a JSON byte slice for a storage backend.
func (c *JSONCodec[K, V]) EncodeValue(value V) ([]byte, error) {
	return json.Marshal(value)
}

// DecodeValue decodes a JSON byte slice into a value from a storage backend.
func (c *JSONCodec[K, V]) DecodeValue(data []byte) (V, error) {
	var value V
	err := json.Unmarshal(data, &value)
	return value, err
}
