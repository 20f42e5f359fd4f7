// Package profile aggregates the parser's per-kind results into one
// snapshot of a profile source, caches snapshots by profile name, and
// assembles compilable document bodies from a selection of entries.
package profile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/vitae/internal/parser"
)

// DefaultGroup is the head of the annotation group drawn from the header band.
const DefaultGroup = "Default"

// knownRe matches "% id = expression" cross-reference lines.
var knownRe = regexp.MustCompile(`(?m)^% ([a-z]+)[ \t]+=[ \t]+(.*)$`)

// KnownSection maps a literal section expression to the kind whose
// selected entries follow it in an assembled body.
type KnownSection struct {
	Expr string      `json:"expr"`
	Kind parser.Kind `json:"-"`
}

// Group is a set of annotation records under a heading.
type Group struct {
	Head  string              `json:"head"`
	Lines []parser.Annotation `json:"lines"`
}

// Model is the parsed representation of one profile source. It is
// immutable once built.
type Model struct {
	name         string
	source       string
	kinds        map[parser.Kind]parser.Result
	descriptions map[parser.Kind]string
	owner        map[string]parser.Kind
	known        []KnownSection
	knownIdx     map[string]int
	defaults     []parser.Annotation
}

// Build parses src into a Model named name.
func Build(name, src string) *Model {
	m := &Model{
		name:         name,
		source:       src,
		kinds:        make(map[parser.Kind]parser.Result, len(parser.Kinds())),
		descriptions: make(map[parser.Kind]string, len(parser.Kinds())),
		owner:        make(map[string]parser.Kind),
		knownIdx:     make(map[string]int),
	}

	all := parser.ExtractAll(src)
	for _, k := range parser.Kinds() {
		res := all[k]
		m.kinds[k] = res
		m.descriptions[k] = describe(k, res)
		for _, id := range res.Entries {
			m.owner[id] = k
		}
	}

	for _, sm := range knownRe.FindAllStringSubmatch(src, -1) {
		k, ok := parser.KindByCollection(sm[1])
		if !ok {
			continue
		}
		expr := sm[2]
		if i, dup := m.knownIdx[expr]; dup {
			m.known[i].Kind = k
			continue
		}
		m.knownIdx[expr] = len(m.known)
		m.known = append(m.known, KnownSection{Expr: expr, Kind: k})
	}

	m.defaults = parser.Annotations(parser.Band(src))
	return m
}

func describe(k parser.Kind, res parser.Result) string {
	var b strings.Builder
	for _, id := range res.Entries {
		fmt.Fprintf(&b, "---- BEGIN %s `%s` ----\n%s\n---- END %s `%s` ----\n",
			k.Title(), id, res.Bodies[id], k.Title(), id)
	}
	return b.String()
}

// Name is the profile name the model was built for.
func (m *Model) Name() string { return m.name }

// Source is the raw profile text.
func (m *Model) Source() string { return m.source }

// Entries returns the entry identifiers of kind k in source order.
func (m *Model) Entries(k parser.Kind) []string {
	return m.kinds[k].Entries
}

// Body returns the cleaned body of an entry.
func (m *Model) Body(id string) (string, bool) {
	k, ok := m.owner[id]
	if !ok {
		return "", false
	}
	return m.kinds[k].Bodies[id], true
}

// Annotations returns the annotation records of an entry.
func (m *Model) Annotations(id string) []parser.Annotation {
	k, ok := m.owner[id]
	if !ok {
		return nil
	}
	return m.kinds[k].Annotations[id]
}

// KindOf reports which kind declares id.
func (m *Model) KindOf(id string) (parser.Kind, bool) {
	k, ok := m.owner[id]
	return k, ok
}

// Description returns the delimited concatenation of kind k's bodies.
func (m *Model) Description(k parser.Kind) string {
	return m.descriptions[k]
}

// KnownSections returns the cross-reference table in declaration order.
func (m *Model) KnownSections() []KnownSection {
	out := make([]KnownSection, len(m.known))
	copy(out, m.known)
	return out
}

// KnownKind resolves a literal section expression to its kind.
func (m *Model) KnownKind(expr string) (parser.Kind, bool) {
	i, ok := m.knownIdx[expr]
	if !ok {
		return 0, false
	}
	return m.known[i].Kind, true
}

// Defaults returns the header-band annotation records.
func (m *Model) Defaults() []parser.Annotation {
	return m.defaults
}

// ResolveDescription concatenates the bodies of the identified entries in
// the given order, each followed by a blank line. Unknown ids are skipped.
func (m *Model) ResolveDescription(ids []string) string {
	var b strings.Builder
	for _, id := range ids {
		body, ok := m.Body(id)
		if !ok {
			continue
		}
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	return b.String()
}

// ResolveAnnotations returns the default header group followed by one
// group per identified entry that carries annotations.
func (m *Model) ResolveAnnotations(ids []string) []Group {
	out := []Group{{Head: DefaultGroup, Lines: m.defaults}}
	for _, id := range ids {
		lines := m.Annotations(id)
		if len(lines) == 0 {
			continue
		}
		out = append(out, Group{Head: id, Lines: lines})
	}
	return out
}

// Collections returns the entry identifiers of every kind keyed by the
// kind's collection id.
func (m *Model) Collections() map[string][]string {
	out := make(map[string][]string, len(m.kinds))
	for _, k := range parser.Kinds() {
		ids := m.kinds[k].Entries
		if ids == nil {
			ids = []string{}
		}
		out[k.Collection()] = ids
	}
	return out
}
