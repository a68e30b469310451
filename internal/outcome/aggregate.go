package outcome

import (
	"github.com/agendobot/metrics/internal/session"
)

// Tally holds per-category counts and confidence-weighted sums for one tenant
// window. Excluded sessions are counted but contribute to no denominator.
type Tally struct {
	Counts      map[string]int
	WeightedSum map[string]float64
	Excluded    int
	SuccessW    float64
	NeutralW    float64
	FailureW    float64
	TotalW      float64
}

// Aggregate classifies each session's final outcome and accumulates weighted
// category totals. A session's weight is its mean confidence score; sessions
// without any confidence data weigh zero but are still counted.
func Aggregate(sessions []session.ConversationSession) Tally {
	t := Tally{
		Counts:      make(map[string]int),
		WeightedSum: make(map[string]float64),
	}
	for _, s := range sessions {
		if Excluded(s.FinalOutcome) {
			t.Excluded++
			continue
		}
		cat := Classify(s.FinalOutcome)
		w := s.MeanConfidence
		t.Counts[cat]++
		t.WeightedSum[cat] += w
		t.TotalW += w
		switch ClassOf(cat) {
		case ClassSuccess:
			t.SuccessW += w
		case ClassNeutral:
			t.NeutralW += w
		case ClassFailure:
			t.FailureW += w
		}
	}
	return t
}

// Sessions is the number of classified sessions, exclusions not included.
func (t Tally) Sessions() int {
	n := 0
	for _, c := range t.Counts {
		n += c
	}
	return n
}

// EfficiencyPct scores the tenant window: successes count fully, neutrals
// half, failures not at all, weighted by session confidence. Zero total
// weight resolves to 0, not an error.
func (t Tally) EfficiencyPct() float64 {
	if t.TotalW == 0 {
		return 0
	}
	return (t.SuccessW + 0.5*t.NeutralW) / t.TotalW * 100
}
