// Package cardref is the boundary to the external card reference database.
// The matcher asks it for candidate cards filtered by extracted hints and
// scores whatever comes back.
package cardref

import "context"

// Card is one reference card as the external database describes it.
type Card struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Number    string   `json:"number"`
	SetName   string   `json:"set_name"`
	Year      int      `json:"year,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// Query narrows the candidate search. Zero values mean "no hint".
type Query struct {
	ID      string
	Name    string
	Number  string
	SetName string
	Year    int
	Limit   int
}

// Client looks up candidate cards.
type Client interface {
	Search(ctx context.Context, query Query) ([]Card, error)
}
