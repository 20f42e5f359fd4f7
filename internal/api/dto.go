package api

import (
	"errors"

	"github.com/starford/vitae/internal/dateutil"
	"github.com/starford/vitae/internal/ledger"
	"github.com/starford/vitae/internal/locate"
	"github.com/starford/vitae/internal/models"
	"github.com/starford/vitae/internal/parser"
	"github.com/starford/vitae/internal/profile"
	"github.com/starford/vitae/internal/profileservice"
)

// ProfileDetail is the parsed profile response (aliased from the domain layer).
type ProfileDetail = profileservice.ProfileDetail

// ProfileListResponse wraps the profile listing.
type ProfileListResponse struct {
	Profiles []models.ProfileMeta `json:"profiles" validate:"required"`
}

// EntriesResponse lists entry ids per collection and the known sections.
type EntriesResponse struct {
	Collections   map[string][]string    `json:"collections" validate:"required"`
	KnownSections []profile.KnownSection `json:"known_sections" validate:"required"`
}

// CompileRequest is the body of POST /profile/{profile}/pdf.
type CompileRequest = profile.Selection

// LocateResponse is the JSON form of an edit lookup.
type LocateResponse = locate.Location

// SelectionResponse is the pending selection of a profile.
type SelectionResponse = ledger.SelectionRow

// BuildListResponse wraps build ledger rows.
type BuildListResponse struct {
	Builds []models.BuildRecord `json:"builds" validate:"required"`
}

// CodeField is one typed-out field of an annotation.
type CodeField struct {
	Keys    string `json:"keys" example:"Jane Doe\t"`
	Display string `json:"display" example:"Jane Doe"`
}

// CodeLine is one annotation record.
type CodeLine struct {
	Head   string      `json:"head" example:"name"`
	Fields []CodeField `json:"fields"`
}

// CodeGroup is the annotation records of one entry.
type CodeGroup struct {
	Head  string     `json:"head" example:"\\eAcme"`
	Lines []CodeLine `json:"lines"`
}

// CodesResponse wraps the annotation groups of a body.
type CodesResponse struct {
	Groups []CodeGroup `json:"groups" validate:"required"`
}

func codeGroups(groups []profile.Group, dateFormat string) ([]CodeGroup, error) {
	out := make([]CodeGroup, 0, len(groups))
	for _, g := range groups {
		cg := CodeGroup{Head: g.Head, Lines: make([]CodeLine, 0, len(g.Lines))}
		for _, a := range g.Lines {
			line, err := codeLine(a, dateFormat)
			if err != nil {
				return nil, err
			}
			cg.Lines = append(cg.Lines, line)
		}
		out = append(out, cg)
	}
	return out, nil
}

func codeLine(a parser.Annotation, dateFormat string) (CodeLine, error) {
	line := CodeLine{Head: a.Label}
	if a.IsDate() {
		keys, err := a.Format(dateFormat)
		if errors.Is(err, dateutil.ErrInvalidFormat) {
			return CodeLine{}, err
		}
		if err != nil {
			keys = a.Date + parser.TermTab
		}
		line.Fields = []CodeField{{Keys: keys, Display: parser.Display(keys)}}
		return line, nil
	}
	for _, f := range a.Fields {
		line.Fields = append(line.Fields, CodeField{Keys: f.Keys(), Display: parser.Display(f.Keys())})
	}
	return line, nil
}
