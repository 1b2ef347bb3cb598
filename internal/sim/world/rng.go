package world

import "math/rand"

// countingSource wraps the seeded source and counts draws so the RNG position can be
// snapshotted and restored by reseeding and discarding.
type countingSource struct {
	src   rand.Source
	draws uint64
}

func newCountingSource(seed int64) *countingSource {
	return &countingSource{src: rand.NewSource(seed)}
}

func (s *countingSource) Int63() int64 {
	s.draws++
	return s.src.Int63()
}

func (s *countingSource) Seed(seed int64) {
	s.src.Seed(seed)
	s.draws = 0
}

// restore reseeds and fast-forwards to the given draw count.
func (s *countingSource) restore(seed int64, draws uint64) {
	s.Seed(seed)
	for s.draws < draws {
		s.Int63()
	}
}
