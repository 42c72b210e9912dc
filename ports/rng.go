package ports

import (
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic
// resampling. Implementations must derive independent sub-streams so that
// parallel bootstrap replicates stay reproducible and uncorrelated.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation.
	SeededStream(name string, seed int64) *rand.Rand

	// ReplicateStream derives an independent deterministic stream for one
	// bootstrap replicate index. Streams for distinct indices must not share
	// state.
	ReplicateStream(baseSeed int64, replicate int) *rand.Rand
}
