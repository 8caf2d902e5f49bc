package match

import (
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"cardvault/internal/cardref"
	"cardvault/internal/models"
)

const (
	// neutralScore is used when a dimension has no extracted data to judge:
	// absence of evidence is weak, not disqualifying.
	neutralScore = 0.25

	yearExactScore = 1.0
	yearCloseScore = 0.5
)

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Score computes the five component scores and their weighted aggregate for
// one candidate against one scan's extracted fields.
func Score(fields *models.ExtractedFields, card cardref.Card, weights Weights) (models.ComponentScores, float64) {
	scores := models.ComponentScores{
		YearMatch:       yearScore(fields.Year, card.Year),
		PokemonMatch:    nameScore(fields, card.Name),
		CardNumberMatch: numberScore(fields.CandidateNumbers, card.Number),
		ModifierMatch:   modifierScore(fields.Modifiers, card.Modifiers),
		SetVerification: setScore(fields.SetName, card.SetName),
	}

	total := weights.sum()
	if total <= 0 {
		return scores, 0
	}
	aggregate := (weights.Year*scores.YearMatch +
		weights.Pokemon*scores.PokemonMatch +
		weights.CardNumber*scores.CardNumberMatch +
		weights.Modifier*scores.ModifierMatch +
		weights.Set*scores.SetVerification) / total

	return scores, aggregate
}

func yearScore(extracted, candidate int) float64 {
	if extracted == 0 || candidate == 0 {
		return neutralScore
	}
	switch diff := extracted - candidate; {
	case diff == 0:
		return yearExactScore
	case diff == 1 || diff == -1:
		return yearCloseScore
	default:
		return 0
	}
}

// nameScore tries every OCR name candidate and keeps the best similarity.
func nameScore(fields *models.ExtractedFields, cardName string) float64 {
	candidates := fields.CandidateNames
	if len(candidates) == 0 && fields.CardName != "" {
		candidates = []string{fields.CardName}
	}
	if len(candidates) == 0 {
		return 0
	}

	best := 0.0
	for _, candidate := range candidates {
		if sim := nameSimilarity(candidate, cardName); sim > best {
			best = sim
		}
	}
	return best
}

// nameSimilarity blends edit distance with token overlap. Edit distance
// handles single-word OCR garbling (CHARIZARD vs CHAR1ZARD); token overlap
// handles reordered or partially-read multiword names.
func nameSimilarity(a, b string) float64 {
	normA, normB := normalizeName(a), normalizeName(b)
	if normA == "" || normB == "" {
		return 0
	}
	if normA == normB {
		return 1
	}

	distance := levenshtein.ComputeDistance(normA, normB)
	longest := math.Max(float64(len(normA)), float64(len(normB)))
	editSim := 1 - float64(distance)/longest

	tokenSim := tokenOverlap(normA, normB)
	return math.Max(editSim, tokenSim)
}

func normalizeName(name string) string {
	lower := strings.ToLower(name)
	return strings.TrimSpace(nonAlnumPattern.ReplaceAllString(lower, " "))
}

func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	setB := make(map[string]bool, len(tokensB))
	for _, tok := range tokensB {
		setB[tok] = true
	}
	shared := 0
	for _, tok := range tokensA {
		if setB[tok] {
			shared++
		}
	}
	return float64(2*shared) / float64(len(tokensA)+len(tokensB))
}

// numberScore tries every OCR number candidate; exact match wins.
func numberScore(candidates []string, cardNumber string) float64 {
	if len(candidates) == 0 {
		return neutralScore
	}
	target := normalizeNumber(cardNumber)
	if target == "" {
		return neutralScore
	}
	for _, candidate := range candidates {
		if normalizeNumber(candidate) == target {
			return 1
		}
	}
	return 0
}

func normalizeNumber(number string) string {
	trimmed := strings.TrimLeft(strings.ToUpper(strings.TrimSpace(number)), "0")
	return trimmed
}

// modifierScore is the overlap ratio between the extracted modifier set and
// the candidate's. Two empty sets agree perfectly.
func modifierScore(extracted, candidate []string) float64 {
	setA := normalizeSet(extracted)
	setB := normalizeSet(candidate)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for modifier := range setA {
		if setB[modifier] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

func normalizeSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		normalized := strings.ToUpper(strings.TrimSpace(v))
		if normalized != "" {
			set[normalized] = true
		}
	}
	return set
}

// setScore verifies the candidate's set against the extracted hint. With no
// hint there is nothing to verify, so the dimension stays neutral.
func setScore(extracted, candidate string) float64 {
	if strings.TrimSpace(extracted) == "" {
		return neutralScore
	}
	normA, normB := normalizeName(extracted), normalizeName(candidate)
	if normA == "" || normB == "" {
		return 0
	}
	if normA == normB || strings.Contains(normB, normA) || strings.Contains(normA, normB) {
		return 1
	}
	return nameSimilarity(extracted, candidate)
}
