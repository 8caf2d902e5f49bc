package match

import (
	"math"
	"testing"

	"cardvault/internal/cardref"
	"cardvault/internal/models"
)

func TestYearScore(t *testing.T) {
	tests := []struct {
		name      string
		extracted int
		candidate int
		want      float64
	}{
		{"exact", 2002, 2002, 1.0},
		{"one year late", 2003, 2002, 0.5},
		{"one year early", 2001, 2002, 0.5},
		{"far off", 1999, 2002, 0.0},
		{"no extracted year is neutral", 0, 2002, neutralScore},
		{"no candidate year is neutral", 2002, 0, neutralScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := yearScore(tt.extracted, tt.candidate); got != tt.want {
				t.Errorf("yearScore(%d, %d) = %f, want %f", tt.extracted, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestNameScoreBestOfCandidates(t *testing.T) {
	fields := &models.ExtractedFields{
		CandidateNames: []string{"CHARIZARD-HOLO", "CHARIZARD"},
	}
	score := nameScore(fields, "Charizard")
	if score != 1.0 {
		t.Errorf("expected exact-normalized candidate to score 1.0, got %f", score)
	}

	garbled := &models.ExtractedFields{CandidateNames: []string{"CHAR1ZARD"}}
	score = nameScore(garbled, "Charizard")
	if score < 0.8 || score >= 1.0 {
		t.Errorf("expected high partial score for one-character OCR error, got %f", score)
	}

	unrelated := &models.ExtractedFields{CandidateNames: []string{"SNORLAX"}}
	if score = nameScore(unrelated, "Charizard"); score > 0.4 {
		t.Errorf("expected low score for unrelated name, got %f", score)
	}

	if got := nameScore(&models.ExtractedFields{}, "Charizard"); got != 0 {
		t.Errorf("expected zero score with no extracted names, got %f", got)
	}
}

func TestNumberScore(t *testing.T) {
	if got := numberScore([]string{"40", "48"}, "40"); got != 1.0 {
		t.Errorf("expected exact number match, got %f", got)
	}
	if got := numberScore([]string{"040"}, "40"); got != 1.0 {
		t.Errorf("expected leading zeros ignored, got %f", got)
	}
	if got := numberScore([]string{"39"}, "40"); got != 0 {
		t.Errorf("expected mismatch to score zero, got %f", got)
	}
	if got := numberScore(nil, "40"); got != neutralScore {
		t.Errorf("expected neutral score with no extracted numbers, got %f", got)
	}
}

func TestModifierScore(t *testing.T) {
	tests := []struct {
		name      string
		extracted []string
		candidate []string
		want      float64
	}{
		{"both empty agree", nil, nil, 1.0},
		{"identical sets", []string{"HOLO"}, []string{"holo"}, 1.0},
		{"partial overlap", []string{"HOLO", "1ST EDITION"}, []string{"HOLO"}, 0.5},
		{"disjoint", []string{"REVERSE HOLO"}, []string{"HOLO"}, 0.0},
		{"extracted empty candidate not", nil, []string{"HOLO"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := modifierScore(tt.extracted, tt.candidate); got != tt.want {
				t.Errorf("modifierScore = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSetScore(t *testing.T) {
	if got := setScore("", "Base"); got != neutralScore {
		t.Errorf("expected neutral score with no hint, got %f", got)
	}
	if got := setScore("EXPEDITION", "Expedition Base Set"); got != 1.0 {
		t.Errorf("expected containment to verify, got %f", got)
	}
	if got := setScore("AQUAPOLIS", "Base"); got > 0.5 {
		t.Errorf("expected unrelated sets to score low, got %f", got)
	}
}

func TestScoreWeightedAggregate(t *testing.T) {
	fields := &models.ExtractedFields{
		Year:             2002,
		CardName:         "CHARIZARD",
		CandidateNames:   []string{"CHARIZARD"},
		CandidateNumbers: []string{"40"},
		SetName:          "EXPEDITION",
		Modifiers:        []string{"HOLO"},
	}
	card := cardref.Card{
		ID:        "ex1-40",
		Name:      "Charizard",
		Number:    "40",
		SetName:   "Expedition Base Set",
		Year:      2002,
		Modifiers: []string{"HOLO"},
	}

	scores, aggregate := Score(fields, card, DefaultWeights())
	if scores.YearMatch != 1 || scores.PokemonMatch != 1 || scores.CardNumberMatch != 1 ||
		scores.ModifierMatch != 1 || scores.SetVerification != 1 {
		t.Errorf("expected perfect component scores, got %+v", scores)
	}
	if math.Abs(aggregate-1.0) > 1e-9 {
		t.Errorf("expected aggregate 1.0 for a perfect candidate, got %f", aggregate)
	}

	// The name and number dimensions must dominate the aggregate.
	weights := DefaultWeights()
	nameAndNumber := weights.Pokemon + weights.CardNumber
	others := weights.Year + weights.Modifier + weights.Set
	if nameAndNumber <= others {
		t.Errorf("pokemon+number weight %f should exceed remaining %f", nameAndNumber, others)
	}
}

func TestScoreExactBeatsNearMisses(t *testing.T) {
	// Year 2002, Charizard, number 4 against an exact match and two
	// near-misses.
	fields := &models.ExtractedFields{
		Year:             2002,
		CardName:         "Charizard",
		CandidateNames:   []string{"Charizard"},
		CandidateNumbers: []string{"4"},
	}
	exact := cardref.Card{ID: "a", Name: "Charizard", Number: "4", Year: 2002}
	wrongYear := cardref.Card{ID: "b", Name: "Charizard", Number: "4", Year: 1999}
	wrongNumber := cardref.Card{ID: "c", Name: "Charizard", Number: "40", Year: 2002}

	_, exactScore := Score(fields, exact, DefaultWeights())
	_, yearScore := Score(fields, wrongYear, DefaultWeights())
	_, numberScore := Score(fields, wrongNumber, DefaultWeights())

	if exactScore <= yearScore || exactScore <= numberScore {
		t.Errorf("exact candidate must outrank near-misses: exact=%f wrongYear=%f wrongNumber=%f",
			exactScore, yearScore, numberScore)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights must validate: %v", err)
	}
	if err := (Weights{}).Validate(); err == nil {
		t.Error("zero weights must fail validation")
	}
	if err := (Weights{Year: -0.1, Pokemon: 1.1}).Validate(); err == nil {
		t.Error("negative weight must fail validation")
	}
}
