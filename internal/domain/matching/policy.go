package matching

import "fmt"

// Policy holds the acceptance thresholds and the candidate bound K.
type Policy struct {
	HighThreshold  float64
	LowThreshold   float64
	CandidateLimit int
}

// DefaultPolicy returns the stock thresholds: 0.90 / 0.50 with K=20.
func DefaultPolicy() Policy {
	return Policy{
		HighThreshold:  0.90,
		LowThreshold:   0.50,
		CandidateLimit: 20,
	}
}

// Validate checks 0 <= low <= high <= 1 and K >= 1.
func (p Policy) Validate() error {
	if p.LowThreshold < 0 || p.HighThreshold > 1 || p.LowThreshold > p.HighThreshold {
		return fmt.Errorf("thresholds must satisfy 0 <= low <= high <= 1, got low=%v high=%v",
			p.LowThreshold, p.HighThreshold)
	}
	if p.CandidateLimit < 1 {
		return fmt.Errorf("candidate limit must be at least 1, got %d", p.CandidateLimit)
	}
	return nil
}

// Classify maps a score onto the acceptance bands.
func (p Policy) Classify(score float64) (accepted, verified bool) {
	switch {
	case score >= p.HighThreshold:
		return true, true
	case score >= p.LowThreshold:
		return true, false
	default:
		return false, false
	}
}
