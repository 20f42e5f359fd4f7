// Package parser extracts typed entry declarations, their bodies and their
// inline annotation records from a LaTeX profile source.
package parser

import "regexp"

// Kind is a category of profile entry.
type Kind int

const (
	Degree Kind = iota
	License
	Project
	Experience
	Course
	Skill
	Section
)

// Mode selects how far a declaration body extends.
type Mode int

const (
	// Paragraph bodies run until the next blank line.
	Paragraph Mode = iota
	// SingleLine bodies are the remainder of the declaration line.
	SingleLine
)

type kindInfo struct {
	name       string
	prefix     string
	collection string
	title      string
	mode       Mode
}

var kindTable = [...]kindInfo{
	Degree:     {"degree", "ed", "edus", "CONFERRED DEGREE", Paragraph},
	License:    {"license", "lc", "lics", "LICENSE / CERTIFICATE", Paragraph},
	Project:    {"project", "p", "projs", "PROJECT", Paragraph},
	Experience: {"experience", "e", "exps", "JOB EXPERIENCE", Paragraph},
	Course:     {"course", "crs", "crss", "COURSE", SingleLine},
	Skill:      {"skill", "s", "skills", "SKILL LIST", Paragraph},
	Section:    {"section", "section", "sections", "MISC DATA", Paragraph},
}

var (
	byPrefix     = make(map[string]Kind, len(kindTable))
	byCollection = make(map[string]Kind, len(kindTable))
)

func init() {
	for k, info := range kindTable {
		byPrefix[info.prefix] = Kind(k)
		byCollection[info.collection] = Kind(k)
	}
}

// tokenRe matches a bare entry token such as \pFoo: lowercase prefix,
// then an identifier of letters with a leading uppercase letter.
var tokenRe = regexp.MustCompile(`^\\([a-z]+)[A-Z][A-Za-z]*$`)

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindTable))
	for i := range kindTable {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kindTable) }

func (k Kind) String() string {
	if !k.valid() {
		return "unknown"
	}
	return kindTable[k].name
}

// Prefix is the naming prefix of the kind's tokens, without the backslash.
func (k Kind) Prefix() string { return kindTable[k].prefix }

// Collection is the identifier used for the kind in known-section tables
// and in the entries listing (e.g. "projs").
func (k Kind) Collection() string { return kindTable[k].collection }

// Title is the heading used in description blobs.
func (k Kind) Title() string { return kindTable[k].title }

// Mode is the body-extraction mode.
func (k Kind) Mode() Mode { return kindTable[k].mode }

// KindByPrefix looks up a kind by its token prefix.
func KindByPrefix(prefix string) (Kind, bool) {
	k, ok := byPrefix[prefix]
	return k, ok
}

// KindByCollection looks up a kind by its collection identifier.
func KindByCollection(id string) (Kind, bool) {
	k, ok := byCollection[id]
	return k, ok
}

// ParseToken reports the kind of a bare entry token like \pFoo.
func ParseToken(tok string) (Kind, bool) {
	m := tokenRe.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	return KindByPrefix(m[1])
}
