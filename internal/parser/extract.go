package parser

import (
	"regexp"
	"strings"
)

var (
	// declRe finds declarations anchored to line starts: a control word
	// starting with \def, immediately followed by an entry token.
	declRe = regexp.MustCompile(`(?m)^\\def[a-z]*(\\([a-z]+)[A-Z][A-Za-z]*)`)

	parRe  = regexp.MustCompile(`\\par\b`)
	hrefRe = regexp.MustCompile(`\\g?hhref\{[^}]*\}`)
)

// Declaration is one entry declaration found in a source.
type Declaration struct {
	Token string
	Kind  Kind
	// Offset is the byte offset just past the token; the body starts here.
	Offset int
}

// Result is the outcome of extracting one kind from a source.
type Result struct {
	Entries     []string
	Bodies      map[string]string
	Annotations map[string][]Annotation
}

// Scan walks src once and returns every declaration of a known kind in
// source order. A token declared twice keeps its first declaration.
func Scan(src string) []Declaration {
	matches := declRe.FindAllStringSubmatchIndex(src, -1)
	out := make([]Declaration, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		k, ok := KindByPrefix(src[m[4]:m[5]])
		if !ok {
			continue
		}
		tok := src[m[2]:m[3]]
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, Declaration{Token: tok, Kind: k, Offset: m[3]})
	}
	return out
}

// Extract returns the entries of kind k declared in src with their bodies
// and annotation records. It never fails; an absent kind yields empty,
// non-nil containers.
func Extract(src string, k Kind) Result {
	return extractFrom(src, Scan(src), k)
}

// ExtractAll extracts every kind from a single scan of src.
func ExtractAll(src string) map[Kind]Result {
	decls := Scan(src)
	out := make(map[Kind]Result, len(kindTable))
	for _, k := range Kinds() {
		out[k] = extractFrom(src, decls, k)
	}
	return out
}

func extractFrom(src string, decls []Declaration, k Kind) Result {
	res := Result{
		Entries:     []string{},
		Bodies:      make(map[string]string),
		Annotations: make(map[string][]Annotation),
	}
	for _, d := range decls {
		if d.Kind != k {
			continue
		}
		body := Clean(span(src[d.Offset:], k.Mode()))
		res.Entries = append(res.Entries, d.Token)
		res.Bodies[d.Token] = body
		res.Annotations[d.Token] = Annotations(body)
	}
	return res
}

// span cuts the body text out of rest according to mode.
func span(rest string, mode Mode) string {
	if mode == SingleLine {
		if i := strings.IndexAny(rest, "\r\n"); i >= 0 {
			return rest[:i]
		}
		return rest
	}
	if i := strings.Index(rest, "\n\n"); i >= 0 {
		return rest[:i]
	}
	return rest
}

// Clean strips presentation-only markup from a body: every \par, and only
// the first \hhref{...} or \ghhref{...} wrapper.
func Clean(body string) string {
	body = parRe.ReplaceAllString(body, "")
	if loc := hrefRe.FindStringIndex(body); loc != nil {
		body = body[:loc[0]] + body[loc[1]:]
	}
	return strings.TrimSpace(body)
}

// IsDeclarationLine reports whether line declares token.
func IsDeclarationLine(line, token string) bool {
	m := declRe.FindStringSubmatch(line)
	return m != nil && m[1] == token
}
