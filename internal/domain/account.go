package domain

// RawAccount is an account snapshot as fetched from chain.
// The engine never mutates it.
type RawAccount struct {
	Address PubKey
	Owner   PubKey
	Data    []byte
}
