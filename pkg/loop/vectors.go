package loop

import (
	"math/bits"
	"math/rand/v2"
	"slices"
)

// MaxVectorBits is the width of a decision vector.
const MaxVectorBits = 64

// HammingDistance returns the number of differing bits between two vectors.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// MutateVector flips exactly min(flips, maxBits) distinct bit positions
// chosen from [0, maxBits).
func MutateVector(v uint64, flips, maxBits int, rng *rand.Rand) uint64 {
	maxBits = clampBits(maxBits)
	if flips > maxBits {
		flips = maxBits
	}
	if flips <= 0 {
		return v
	}
	for _, bit := range rng.Perm(maxBits)[:flips] {
		v ^= 1 << uint(bit)
	}
	return v
}

// CrossoverVectors performs single-point crossover: bits below a random
// crossover point come from a, the remaining bits up to maxBits from b.
func CrossoverVectors(a, b uint64, maxBits int, rng *rand.Rand) uint64 {
	maxBits = clampBits(maxBits)
	if maxBits == 0 {
		return 0
	}
	point := rng.IntN(maxBits)
	lower := uint64(1)<<uint(point) - 1
	return a&lower | b&(widthMask(maxBits)^lower)
}

// RandomVector returns a vector where each of the first maxBits bits is set
// with probability density.
func RandomVector(maxBits int, density float64, rng *rand.Rand) uint64 {
	var v uint64
	for i := range clampBits(maxBits) {
		if rng.Float64() < density {
			v |= 1 << uint(i)
		}
	}
	return v
}

// EncodeDecisions converts named decision flags into a bit vector using
// decisionMap (name to bit position). Unknown names and out-of-range
// positions are ignored.
func EncodeDecisions(flags map[string]bool, decisionMap map[string]int) uint64 {
	var v uint64
	for name, made := range flags {
		pos, ok := decisionMap[name]
		if !made || !ok || pos < 0 || pos >= MaxVectorBits {
			continue
		}
		v |= 1 << uint(pos)
	}
	return v
}

// DecodeDecisions returns the sorted names whose bits are set in v.
func DecodeDecisions(v uint64, decisionMap map[string]int) []string {
	out := []string{}
	for name, pos := range decisionMap {
		if pos < 0 || pos >= MaxVectorBits {
			continue
		}
		if v&(1<<uint(pos)) != 0 {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func clampBits(n int) int {
	return max(0, min(n, MaxVectorBits))
}

func widthMask(n int) uint64 {
	if n >= MaxVectorBits {
		return ^uint64(0)
	}
	return uint64(1)<<uint(n) - 1
}
