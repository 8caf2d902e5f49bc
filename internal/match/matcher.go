package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"cardvault/internal/cardref"
	"cardvault/internal/models"
)

// Config tunes the matcher beyond its weights.
type Config struct {
	Weights Weights
	// MinConfidence is the floor an aggregate must clear for an automatic
	// match; below it the scan is reported as no_match.
	MinConfidence float64
	// ReportedCandidates caps how many scored candidates are kept for
	// manual review.
	ReportedCandidates int
	// MaxCandidates caps the reference lookup.
	MaxCandidates int
}

// Matcher queries the card reference collaborator and ranks candidates.
type Matcher struct {
	client cardref.Client
	cfg    Config
	logger *slog.Logger
}

// Outcome is the result of matching one scan.
type Outcome struct {
	Candidates     []models.CardMatch
	Best           *models.CardMatch
	MatchingStatus models.MatchingStatus
}

func New(client cardref.Client, cfg Config, logger *slog.Logger) (*Matcher, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("min confidence must be in [0,1]")
	}
	if cfg.ReportedCandidates <= 0 {
		cfg.ReportedCandidates = 3
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{client: client, cfg: cfg, logger: logger}, nil
}

// Match runs the hierarchical lookup for one scan's extracted fields:
// query the reference database with the strongest hints, score every
// candidate on the five components, rank, and pick a best match if the
// floor is cleared. An empty candidate set or a sub-floor best yields
// no_match, which is an outcome, not an error.
func (m *Matcher) Match(ctx context.Context, fields *models.ExtractedFields) (*Outcome, error) {
	if fields.Empty() {
		return &Outcome{MatchingStatus: models.MatchingNoMatch}, nil
	}

	cards, err := m.lookup(ctx, fields)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return &Outcome{MatchingStatus: models.MatchingNoMatch}, nil
	}

	candidates := make([]models.CardMatch, 0, len(cards))
	for _, card := range cards {
		scores, aggregate := Score(fields, card, m.cfg.Weights)
		candidates = append(candidates, models.CardMatch{
			CardID:     card.ID,
			Name:       card.Name,
			Number:     card.Number,
			SetName:    card.SetName,
			Year:       card.Year,
			Confidence: aggregate,
			Scores:     scores,
		})
	}

	// Rank by confidence, card id as the deterministic secondary key.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].CardID < candidates[j].CardID
	})
	if len(candidates) > m.cfg.ReportedCandidates {
		candidates = candidates[:m.cfg.ReportedCandidates]
	}

	best := models.BestMatch(candidates)
	if best == nil || best.Confidence < m.cfg.MinConfidence {
		// Keep the top candidates for manual review even without a match.
		m.logger.Debug("no candidate cleared the confidence floor",
			"candidates", len(candidates), "floor", m.cfg.MinConfidence)
		return &Outcome{
			Candidates:     candidates,
			MatchingStatus: models.MatchingNoMatch,
		}, nil
	}

	return &Outcome{
		Candidates:     candidates,
		Best:           best,
		MatchingStatus: models.MatchingAutoMatched,
	}, nil
}

// VerifyCard reports whether a card id exists in the reference database.
func (m *Matcher) VerifyCard(ctx context.Context, cardID string) (bool, error) {
	cards, err := m.client.Search(ctx, cardref.Query{ID: cardID, Limit: 1})
	if err != nil {
		return false, fmt.Errorf("card reference lookup: %w", err)
	}
	for _, card := range cards {
		if card.ID == cardID {
			return true, nil
		}
	}
	return false, nil
}

// lookup tries progressively weaker hint combinations until candidates
// come back: name+set+year, then name+year, then name alone, then number
// alone, and finally the set and year hints on their own for scans where
// the name never survived OCR. The first non-empty result wins.
func (m *Matcher) lookup(ctx context.Context, fields *models.ExtractedFields) ([]cardref.Card, error) {
	name := fields.CardName
	if name == "" && len(fields.CandidateNames) > 0 {
		name = fields.CandidateNames[0]
	}
	number := ""
	if len(fields.CandidateNumbers) > 0 {
		number = fields.CandidateNumbers[0]
	}

	var queries []cardref.Query
	if name != "" {
		queries = append(queries,
			cardref.Query{Name: name, SetName: fields.SetName, Year: fields.Year},
			cardref.Query{Name: name, Year: fields.Year},
			cardref.Query{Name: name},
		)
	}
	if number != "" {
		queries = append(queries, cardref.Query{Number: number})
	}
	if fields.SetName != "" || fields.Year != 0 {
		queries = append(queries, cardref.Query{SetName: fields.SetName, Year: fields.Year})
	}

	var lastErr error
	for _, query := range queries {
		query.Limit = m.cfg.MaxCandidates
		cards, err := m.client.Search(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		if len(cards) > 0 {
			return cards, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("card reference lookup: %w", lastErr)
	}
	return nil, nil
}
