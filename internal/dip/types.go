package dip

import (
	"net/url"
	"strconv"
)

// Vorgangstyp values used by the tracker.
const (
	TypeKleineAnfrage = "Kleine Anfrage"
	TypeGrosseAnfrage = "Große Anfrage"
)

// Vorgang is a parliamentary proceeding as returned by the DIP API.
// Only the fields the tracker renders are mapped.
type Vorgang struct {
	ID             string       `json:"id"`
	Typ            string       `json:"typ"`
	Titel          string       `json:"titel"`
	Abstract       string       `json:"abstract,omitempty"`
	Vorgangstyp    string       `json:"vorgangstyp"`
	Beratungsstand string       `json:"beratungsstand,omitempty"`
	Wahlperiode    int          `json:"wahlperiode"`
	Datum          string       `json:"datum"`
	Aktualisiert   string       `json:"aktualisiert,omitempty"`
	Initiative     []string     `json:"initiative,omitempty"`
	Sachgebiet     []string     `json:"sachgebiet,omitempty"`
	Deskriptor     []Deskriptor `json:"deskriptor,omitempty"`
}

// Deskriptor is a thesaurus keyword attached to a Vorgang.
type Deskriptor struct {
	Name       string `json:"name"`
	Typ        string `json:"typ"`
	Fundstelle bool   `json:"fundstelle"`
}

// VorgangPage is one page of a list response. Cursor is passed back to
// fetch the next page; it stops changing once the last page was returned.
type VorgangPage struct {
	NumFound  int       `json:"numFound"`
	Cursor    string    `json:"cursor"`
	Documents []Vorgang `json:"documents"`
}

// Query filters a /vorgang listing. Zero values are omitted.
type Query struct {
	Vorgangstyp []string
	Wahlperiode int
	DatumStart  string // YYYY-MM-DD
	DatumEnd    string // YYYY-MM-DD
	Titel       string
	Cursor      string
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("format", "json")
	for _, t := range q.Vorgangstyp {
		v.Add("f.vorgangstyp", t)
	}
	if q.Wahlperiode > 0 {
		v.Set("f.wahlperiode", strconv.Itoa(q.Wahlperiode))
	}
	if q.DatumStart != "" {
		v.Set("f.datum.start", q.DatumStart)
	}
	if q.DatumEnd != "" {
		v.Set("f.datum.end", q.DatumEnd)
	}
	if q.Titel != "" {
		v.Set("f.titel", q.Titel)
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	return v
}
