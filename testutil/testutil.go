package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
// Page popularity and word frequency follow this shape.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1 // 0-indexed
		}
	}

	return n - 1
}

var syllables = []string{
	"ca", "co", "ne", "jo", "la", "bla", "ne", "gro", "ma", "ri", "po", "sa",
	"ti", "gre", "lo", "bo", "ga", "to", "pe", "rro", "al", "mon", "te", "ño",
	"ción", "güe", "rí", "ná",
}

// Word returns a pseudo-random word of two to four syllables. Words may
// carry accents, so they exercise query normalization.
func (r *RNG) Word() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 2 + r.rand.Intn(3)
	w := ""
	for range n {
		w += syllables[r.rand.Intn(len(syllables))]
	}
	return w
}

// Title returns a title of one to three words capitalized like an article
// name, plus a numeric suffix that keeps titles unique.
func (r *RNG) Title(i int) string {
	n := 1 + r.Intn(3)
	t := ""
	for j := range n {
		if j > 0 {
			t += " "
		}
		t += r.Word()
	}
	return fmt.Sprintf("%s %d", t, i)
}
