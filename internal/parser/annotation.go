package parser

import (
	"regexp"
	"strings"

	"github.com/starford/vitae/internal/dateutil"
)

// Field terminators appended when a field is typed out.
const (
	TermTab     = "\t"
	TermNewline = "\n"
	TermNone    = ""
)

// ComboLabel marks annotations whose fields are wrapped in a combo keystroke sequence.
const ComboLabel = "COMBO"

// DetailLabel is the label of the synthetic annotation built from \item bullets.
const DetailLabel = "detail"

var (
	annotationRe = regexp.MustCompile(`(?m)^%> ([^:\n]*): (.*)$`)
	itemRe       = regexp.MustCompile(`\n\s+\\item\s+`)
	itemEndRe    = regexp.MustCompile(`\\end|\n\s+\\item`)
	breakRe      = regexp.MustCompile(`\s*(?:\\\\|\n)\s*`)
	commandRe    = regexp.MustCompile(`\\[a-z]+\{([^}]*)\}`)
	bandRe       = regexp.MustCompile(`(?m)^%>>+`)
)

// Field is one pipe-delimited piece of an annotation value.
type Field struct {
	Text string `json:"text"`
	Term string `json:"term"`
}

// Keys returns the field as it is typed: text then terminator.
func (f Field) Keys() string { return f.Text + f.Term }

// Annotation is a (label, value) record declared with "%> label: value".
// Date values are kept raw and formatted on demand.
type Annotation struct {
	Label  string  `json:"head"`
	Fields []Field `json:"texts,omitempty"`
	Date   string  `json:"date,omitempty"`
}

// IsDate reports whether the value is a deferred date.
func (a Annotation) IsDate() bool { return a.Date != "" }

// Format renders a deferred date with a moment-style format, followed by
// a tab terminator. For literal annotations it returns the typed fields.
func (a Annotation) Format(format string) (string, error) {
	if !a.IsDate() {
		var b strings.Builder
		for _, f := range a.Fields {
			b.WriteString(f.Keys())
		}
		return b.String(), nil
	}
	t, err := dateutil.ParseCompact(a.Date)
	if err != nil {
		return "", err
	}
	s, err := dateutil.Format(t, format)
	if err != nil {
		return "", err
	}
	return s + TermTab, nil
}

// Annotations returns the annotation records of text in order, followed by
// a detail record when text contains \item bullets.
func Annotations(text string) []Annotation {
	out := []Annotation{}
	for _, m := range annotationRe.FindAllStringSubmatch(text, -1) {
		label, value := m[1], m[2]
		if dateutil.IsCompact(value) {
			out = append(out, Annotation{Label: label, Date: value})
			continue
		}
		a := Annotation{Label: label}
		for _, part := range strings.Split(value, "|") {
			a.Fields = append(a.Fields, fields(label, part)...)
		}
		out = append(out, a)
	}
	if d, ok := detail(text); ok {
		out = append(out, d)
	}
	return out
}

func fields(label, part string) []Field {
	if label == ComboLabel {
		return []Field{{Text: " \t\a" + part, Term: TermNewline}}
	}
	seq := unescape(part)
	switch {
	case strings.HasSuffix(seq, "\t"):
		return []Field{{Text: seq[:len(seq)-1], Term: TermNone}}
	case strings.HasSuffix(seq, "\r"):
		base := seq[:len(seq)-1]
		return []Field{{Text: base, Term: TermNewline}, {Text: base, Term: TermNone}}
	case strings.HasSuffix(seq, "\n"):
		return []Field{{Text: seq[:len(seq)-1], Term: TermNewline}}
	}
	return []Field{{Text: seq, Term: TermTab}}
}

// unescape expands \n, \r and \t unless the backslash is itself escaped.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && (i == 0 || s[i-1] != '\\') {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			case 't':
				b.WriteByte('\t')
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// detail collects \item bullets into a single "- item" list field.
func detail(text string) (Annotation, bool) {
	starts := itemRe.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return Annotation{}, false
	}
	items := make([]string, 0, len(starts))
	for _, loc := range starts {
		rest := text[loc[1]:]
		if end := itemEndRe.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		items = append(items, "- "+detex(rest))
	}
	return Annotation{
		Label:  DetailLabel,
		Fields: []Field{{Text: strings.Join(items, "\n"), Term: TermNone}},
	}, true
}

// detex flattens line breaks and unwraps single-argument commands.
func detex(s string) string {
	s = breakRe.ReplaceAllString(s, " ")
	s = commandRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// Band returns the header-level annotation text: every segment that opens
// with a "%>>" marker line, up to the next blank line, joined by newlines.
func Band(src string) string {
	var segs []string
	pos := 0
	for pos < len(src) {
		loc := bandRe.FindStringIndex(src[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		end := len(src)
		if i := strings.Index(src[start:], "\n\n"); i >= 0 {
			end = start + i
		}
		segs = append(segs, src[start:end])
		pos = end
	}
	return strings.Join(segs, "\n")
}

var newlineRe = regexp.MustCompile(`\r?\n`)

// Display renders keys for humans: tabs as →, newlines as ↲, and a bare ↫
// when the keys end without a terminator. A final tab is dropped.
func Display(keys string) string {
	switch {
	case strings.HasSuffix(keys, "\t"):
		keys = keys[:len(keys)-1]
	case !strings.HasSuffix(keys, "\n"):
		keys += "↫"
	}
	keys = strings.ReplaceAll(keys, "\t", "→")
	return newlineRe.ReplaceAllString(keys, "↲")
}
