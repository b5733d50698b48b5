package mystery

import (
	"math"
	"math/rand"
	"sync"
)

// Candidate is a prize eligible for a draw. Stock nil means unlimited.
type Candidate struct {
	ID     string
	Weight float64
	Stock  *int
}

// Random is the entropy a draw needs. *rand.Rand satisfies it.
type Random interface {
	Int63n(n int64) int64
}

// NewRandom returns a seeded source for SelectPrize that is safe for concurrent spins.
func NewRandom(seed int64) Random {
	return &lockedRandom{r: rand.New(rand.NewSource(seed))}
}

type lockedRandom struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRandom) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

// weightScale converts weights to integer micro-units so accumulation is exact.
const weightScale = 1_000_000

// maxWeightUnits keeps the sum of all candidates within int64.
const maxWeightUnits = math.MaxInt64 / 1024

// SelectPrize draws one candidate with probability proportional to its weight.
// Candidates with a non-positive or non-finite weight, or with a finite stock of
// zero, never win. ok is false when nothing is eligible. The walk follows the
// given order, so a seeded rng reproduces the same result.
func SelectPrize(candidates []Candidate, rng Random) (id string, ok bool) {
	type entry struct {
		id    string
		units int64
	}

	eligible := make([]entry, 0, len(candidates))
	var total int64
	for _, c := range candidates {
		units := weightUnits(c.Weight)
		if units == 0 || (c.Stock != nil && *c.Stock <= 0) {
			continue
		}
		eligible = append(eligible, entry{id: c.ID, units: units})
		total += units
	}
	if len(eligible) == 0 {
		return "", false
	}
	if len(eligible) == 1 {
		return eligible[0].id, true
	}

	r := rng.Int63n(total)
	var cum int64
	for _, e := range eligible {
		cum += e.units
		if cum > r {
			return e.id, true
		}
	}
	return eligible[len(eligible)-1].id, true
}

func weightUnits(w float64) int64 {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return 0
	}
	scaled := math.Round(w * weightScale)
	if scaled < 1 {
		return 1
	}
	if scaled > maxWeightUnits {
		return maxWeightUnits
	}
	return int64(scaled)
}

// TotalWeight sums the eligible weight of active prizes, ignoring stock.
func TotalWeight(prizes []*Prize) float64 {
	var total int64
	for _, p := range prizes {
		if p.Active {
			total += weightUnits(p.Probability)
		}
	}
	return float64(total) / weightScale
}
