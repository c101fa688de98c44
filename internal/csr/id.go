package csr

import "sync/atomic"

// ID is a creation-order identifier. IDs are assigned once, increase
// monotonically across the process and are never reused.
type ID uint64

var lastID atomic.Uint64

func nextID() ID {
	return ID(lastID.Add(1))
}

// named is implemented by everything a collector returns.
type named interface {
	ID() ID
	Name() string
	prefix(p string)
}
