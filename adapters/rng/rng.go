// Package rng provides the default seedable random source with independent
// per-replicate sub-streams, so parallel resampling stays reproducible.
package rng

import (
	"math/rand"

	"gocure/ports"
)

// Adapter implements ports.RNGPort.
type Adapter struct{}

var _ ports.RNGPort = (*Adapter)(nil)

// NewAdapter creates the default RNG adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a named
// operation.
func (a *Adapter) SeededStream(name string, seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(hashString(name))))
}

// ReplicateStream derives an independent deterministic stream for one
// replicate index. Mixing the index through a hash keeps neighboring
// replicate streams uncorrelated.
func (a *Adapter) ReplicateStream(baseSeed int64, replicate int) *rand.Rand {
	mixed := uint64(baseSeed) ^ (uint64(replicate) * 0x9E3779B97F4A7C15)
	return rand.New(rand.NewSource(int64(mixed)))
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
