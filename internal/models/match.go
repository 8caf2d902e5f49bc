package models

// ComponentScores are the five independent 0-1 scores the matcher computes
// for a candidate before weighting.
type ComponentScores struct {
	YearMatch       float64 `json:"year_match"`
	PokemonMatch    float64 `json:"pokemon_match"`
	CardNumberMatch float64 `json:"card_number_match"`
	ModifierMatch   float64 `json:"modifier_match"`
	SetVerification float64 `json:"set_verification"`
}

// CardMatch is a scored candidate card for a scan.
type CardMatch struct {
	CardID     string          `json:"card_id"`
	Name       string          `json:"name"`
	Number     string          `json:"number"`
	SetName    string          `json:"set_name"`
	Year       int             `json:"year,omitempty"`
	Confidence float64         `json:"confidence"`
	Scores     ComponentScores `json:"scores"`
}

// BestMatch selects the candidate with the maximum aggregate confidence.
// Ties break toward the lexicographically smallest card id so repeated runs
// pick the same candidate. Returns nil for an empty candidate set.
func BestMatch(candidates []CardMatch) *CardMatch {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.CardID < best.CardID) {
			best = c
		}
	}
	return &best
}
