package seed

import (
	"math/rand"
	"sync"
	"time"

	"github.com/samber/do"
)

// MaxSeed is the exclusive upper bound of generated seeds.
const MaxSeed = 1_000_000

type Seeder interface {
	Seed() int64
}

// Randomizer hands out seeds in [0, MaxSeed). It is safe for concurrent use.
type Randomizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomizer(_ *do.Injector) (Seeder, error) {
	return New(rand.NewSource(time.Now().UTC().UnixNano())), nil
}

func New(src rand.Source) *Randomizer {
	return &Randomizer{rnd: rand.New(src)}
}

func (r *Randomizer) Seed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Int63n(MaxSeed)
}

// Sequence replays fixed seeds in order, wrapping around.
type Sequence struct {
	mu    sync.Mutex
	seeds []int64
	next  int
}

func NewSequence(seeds ...int64) *Sequence {
	return &Sequence{seeds: seeds}
}

func (s *Sequence) Seed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seeds) == 0 {
		return 0
	}
	v := s.seeds[s.next%len(s.seeds)]
	s.next++
	return v
}
