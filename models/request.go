package models

import "time"

// DateWindow is the travel window for a search: departure/check-in and
// return/check-out.
type DateWindow struct {
	Depart time.Time
	Return time.Time
}

// Nights returns the number of nights the window spans.
func (w DateWindow) Nights() int {
	return int(w.Return.Sub(w.Depart).Hours() / 24)
}

// Party describes the travelers a search is for.
type Party struct {
	Adults       int
	ChildrenAges []int
}

// Children returns the number of children in the party.
func (p Party) Children() int {
	return len(p.ChildrenAges)
}

// SearchRequest is the single input every adapter fetches against. Origin is
// an airport code for flight sources and is ignored by accommodation sources;
// Destination is an airport code or free-text city name depending on the
// adapter.
type SearchRequest struct {
	Origin      string
	Destination string
	Window      DateWindow
	Party       Party
}
