// Package match scores candidate reference cards against the structured
// fields extracted from a scan's label text, and selects a best match.
package match

import "fmt"

// Weights combines the five component scores into one aggregate confidence.
// Name and number dominate: they are the most discriminating fields on a
// graded label. Weights are configuration, not constants; they should sum
// to 1.0 so aggregates stay comparable across deployments.
type Weights struct {
	Year       float64
	Pokemon    float64
	CardNumber float64
	Modifier   float64
	Set        float64
}

// DefaultWeights returns the documented default weighting.
func DefaultWeights() Weights {
	return Weights{
		Year:       0.15,
		Pokemon:    0.30,
		CardNumber: 0.30,
		Modifier:   0.10,
		Set:        0.15,
	}
}

func (w Weights) sum() float64 {
	return w.Year + w.Pokemon + w.CardNumber + w.Modifier + w.Set
}

// Validate rejects weight sets the aggregate cannot be computed from.
func (w Weights) Validate() error {
	if w.sum() <= 0 {
		return fmt.Errorf("match weights must sum to a positive value")
	}
	for name, v := range map[string]float64{
		"year": w.Year, "pokemon": w.Pokemon, "card_number": w.CardNumber,
		"modifier": w.Modifier, "set": w.Set,
	} {
		if v < 0 {
			return fmt.Errorf("match weight %s must not be negative", name)
		}
	}
	return nil
}
