package core

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
)

// StringID is the 32-bit FNV-1a hash of a name.
type StringID uint32

// NewStringID hashes name into a StringID.
func NewStringID(name string) StringID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name)) // fnv.Write never returns an error
	return StringID(h.Sum32())
}

// Invalid is the sentinel for "no id" in every id type below.
const Invalid = ^uint32(0)

// AssetID identifies any loadable asset: textures, materials, compositor
// nodes and workspaces. Render-target textures share this namespace so
// shaders can sample them by id.
type AssetID uint32

// MaterialTechniqueID selects a technique (shader permutation) of a material.
type MaterialTechniqueID StringID

// MaterialPropertyID names a material property.
type MaterialPropertyID StringID

// ChannelID names a compositor channel through which nodes hand render
// targets to each other.
type ChannelID StringID

// FramebufferID names a framebuffer declared by a compositor node.
type FramebufferID StringID

// InvalidAssetID and friends are the typed Invalid sentinels.
const (
	InvalidAssetID       = AssetID(Invalid)
	InvalidTechniqueID   = MaterialTechniqueID(Invalid)
	InvalidChannelID     = ChannelID(Invalid)
	InvalidFramebufferID = FramebufferID(Invalid)
)

// IsValid reports whether id is not the Invalid sentinel.
func (id AssetID) IsValid() bool { return uint32(id) != Invalid }

// IsValid reports whether id is not the Invalid sentinel.
func (id FramebufferID) IsValid() bool { return uint32(id) != Invalid }

// IsValid reports whether id is not the Invalid sentinel.
func (id ChannelID) IsValid() bool { return uint32(id) != Invalid }

// Hasher accumulates fixed-width fields into a 32-bit FNV-1a hash. It is
// used to derive content ids for cache signatures.
type Hasher struct {
	h   hash.Hash32
	buf [4]byte
}

// NewHasher returns an empty FNV-1a hasher.
func NewHasher() *Hasher {
	return &Hasher{h: fnv.New32a()}
}

// Uint32 mixes v into the hash.
func (h *Hasher) Uint32(v uint32) *Hasher {
	binary.LittleEndian.PutUint32(h.buf[:], v)
	_, _ = h.h.Write(h.buf[:])
	return h
}

// Uint8 mixes v into the hash.
func (h *Hasher) Uint8(v uint8) *Hasher {
	_, _ = h.h.Write([]byte{v})
	return h
}

// Sum returns the current hash value.
func (h *Hasher) Sum() uint32 {
	return h.h.Sum32()
}
