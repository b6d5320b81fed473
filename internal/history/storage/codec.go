package storage

// Codec encodes and decodes keys and values for a byte-oriented backend.
//
// Key encodings must preserve ordering for List to return entries in key
// order.
type Codec[K, V any] interface {
	EncodeKey(K) ([]byte, error)
	DecodeKey([]byte) (K, error)
	EncodeValue(V) ([]byte, error)
	DecodeValue([]byte) (V, error)
}
