package arena

import (
	"math/rand/v2"
	"sync"
)

// Rand is the random source used for pairing and snippet shuffling.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// lockedRand serializes access to a Rand that is not goroutine safe.
type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// NewRand returns a goroutine-safe source. A zero seed draws one from the runtime.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))}
}

// Sampler picks two models at random.
type Sampler struct {
	rnd Rand
}

func NewSampler(rnd Rand) *Sampler {
	return &Sampler{rnd: rnd}
}

// Pair returns two entries at distinct indices. Duplicate values in ids
// can still produce the same id twice.
func (s *Sampler) Pair(ids []string) (string, string, error) {
	if len(ids) < 2 {
		return "", "", ErrInsufficientCandidates
	}
	i := s.rnd.IntN(len(ids))
	j := s.rnd.IntN(len(ids))
	if j == i {
		j = (j + 1) % len(ids)
	}
	return ids[i], ids[j], nil
}
