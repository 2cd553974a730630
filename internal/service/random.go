package service

import (
	"math/rand/v2"
	"sync"
)

// Randomizer is the random source behind sampling and shuffles. A fixed seed
// makes the inspiration and trending views reproducible.
type Randomizer interface {
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// lockedRand serializes access to a *rand.Rand.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomizer returns a goroutine-safe Randomizer. Seed 0 draws a random seed.
func NewRandomizer(seed int64) Randomizer {
	s := uint64(seed)
	if seed == 0 {
		s = rand.Uint64()
	}
	return &lockedRand{r: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
