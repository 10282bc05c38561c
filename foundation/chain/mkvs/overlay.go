package mkvs

import "github.com/ethereum/go-ethereum/common"

// Overlay buffers writes on top of a backing store. The state transition for
// a block executes against an overlay so a failed execution leaves the
// backing store untouched, mirroring the all-or-nothing mining contract.
type Overlay struct {
	backing MKVS
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay constructs an Overlay on top of the specified backing store.
func NewOverlay(backing MKVS) *Overlay {
	return &Overlay{
		backing: backing,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Get returns the buffered value when present, otherwise the value from
// the backing store.
func (o *Overlay) Get(key []byte) []byte {
	if _, deleted := o.deletes[string(key)]; deleted {
		return nil
	}

	if value, exists := o.writes[string(key)]; exists {
		out := make([]byte, len(value))
		copy(out, value)
		return out
	}

	return o.backing.Get(key)
}

// Insert buffers the value under the specified key.
func (o *Overlay) Insert(key []byte, value []byte) {
	delete(o.deletes, string(key))

	v := make([]byte, len(value))
	copy(v, value)
	o.writes[string(key)] = v
}

// Remove buffers the deletion of the key.
func (o *Overlay) Remove(key []byte) {
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
}

// Commit is part of the MKVS interface. An overlay is never the canonical
// store so it reports the backing store's current root.
func (o *Overlay) Commit() common.Hash {
	return o.backing.Commit()
}

// Flush applies the buffered writes and deletions to the backing store.
func (o *Overlay) Flush() {
	for k, v := range o.writes {
		o.backing.Insert([]byte(k), v)
	}
	for k := range o.deletes {
		o.backing.Remove([]byte(k))
	}

	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}
