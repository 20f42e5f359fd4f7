package profile

import (
	"regexp"
	"strings"
)

// EndDocument closes every assembled body.
const EndDocument = `\end{document}`

var beginRe = regexp.MustCompile(`^\\begin\{([^}]+)\}`)

// Selection is the caller's choice of literal section lines, in order,
// and of entry identifiers per collection id.
type Selection struct {
	Sections []string            `json:"sections"`
	Entries  map[string][]string `json:"entries"`
}

// Assemble renders sel against m into a compilable document body. Each
// literal is emitted on its own line. A literal registered as a known
// section is followed by the selected entries of its kind, one invocation
// per line; entries the model files under another kind are dropped. A
// literal opening a \begin{env} block is closed with a matching \end{env}.
func Assemble(m *Model, sel Selection) string {
	var b strings.Builder
	for _, s := range sel.Sections {
		b.WriteString(s)
		b.WriteByte('\n')
		if k, ok := m.KnownKind(s); ok {
			ids := make([]string, 0, len(sel.Entries[k.Collection()]))
			for _, id := range sel.Entries[k.Collection()] {
				if owner, ok := m.KindOf(id); ok && owner == k {
					ids = append(ids, id)
				}
			}
			b.WriteString(strings.Join(ids, "\n"))
		}
		if sm := beginRe.FindStringSubmatch(s); sm != nil {
			b.WriteString("\n\\end{" + sm[1] + "}\n")
		}
		b.WriteByte('\n')
	}
	b.WriteString(EndDocument)
	return b.String()
}

// Lines splits text into lines on "\n", the indexing used by the reverse mapper.
func Lines(text string) []string {
	return strings.Split(text, "\n")
}
