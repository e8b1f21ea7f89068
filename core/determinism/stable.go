// Package determinism provides primitives for guaranteeing deterministic execution.
// Calculators and rankers use these instead of Go built-ins wherever ordering
// or identity must be reproducible across runs.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// ComputeHash computes a content hash from bytes
func ComputeHash(data []byte) ContentHash {
	return sha256.Sum256(data)
}

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Hex()[:16] + "..."
}

// Short returns the first 12 hex characters, used in catalog fingerprints
func (h ContentHash) Short() string {
	return h.Hex()[:12]
}

// Dec converts a float rate or multiplier to a decimal.
// Floats enter decimal arithmetic only through here.
func Dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Float returns the float64 value of d (only for display and ratios, never for sums)
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// SortSlice sorts a slice in a stable, deterministic manner
func SortSlice[T any](slice []T, less func(a, b T) bool) {
	sort.SliceStable(slice, func(i, j int) bool {
		return less(slice[i], slice[j])
	})
}

// SortedKeys returns a sorted copy of map keys
func SortedKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	return keys
}

// UniqueSorted returns the distinct values of s in ascending order
func UniqueSorted(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
