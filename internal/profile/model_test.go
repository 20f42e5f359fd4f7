package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vitae/internal/parser"
)

func TestBuild_Entries(t *testing.T) {
	m := Build("cv.tex", fixture)

	assert.Equal(t, "cv.tex", m.Name())
	assert.Equal(t, fixture, m.Source())
	assert.Equal(t, []string{`\eAcme`, `\eBeta`}, m.Entries(parser.Experience))
	assert.Equal(t, []string{`\pVitae`}, m.Entries(parser.Project))
	assert.Equal(t, []string{`\sGo`}, m.Entries(parser.Skill))
	assert.Empty(t, m.Entries(parser.Course))

	body, ok := m.Body(`\eBeta`)
	require.True(t, ok)
	assert.Equal(t, "{Beta, Intern}", body)

	_, ok = m.Body(`\eMissing`)
	assert.False(t, ok)
}

func TestBuild_EveryEntryHasOneKind(t *testing.T) {
	m := Build("cv.tex", fixture)
	seen := map[string]int{}
	for _, k := range parser.Kinds() {
		for _, id := range m.Entries(k) {
			seen[id]++
			owner, ok := m.KindOf(id)
			require.True(t, ok)
			assert.Equal(t, k, owner)
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestBuild_Description(t *testing.T) {
	m := Build("cv.tex", fixture)

	assert.Equal(t,
		"---- BEGIN PROJECT `\\pVitae` ----\n{Vitae renderer}\n---- END PROJECT `\\pVitae` ----\n",
		m.Description(parser.Project))
	assert.Empty(t, m.Description(parser.License))
}

func TestBuild_KnownSections(t *testing.T) {
	m := Build("cv.tex", fixture)

	secs := m.KnownSections()
	require.Len(t, secs, 3)
	assert.Equal(t, `\section{Experience}`, secs[0].Expr)
	assert.Equal(t, parser.Experience, secs[0].Kind)
	assert.Equal(t, parser.Skill, secs[2].Kind)

	_, ok := m.KnownKind(`\section{Nope}`)
	assert.False(t, ok, "unknown collection ids are skipped")

	k, ok := m.KnownKind(`\section{Projects}`)
	require.True(t, ok)
	assert.Equal(t, parser.Project, k)
}

func TestBuild_Annotations(t *testing.T) {
	m := Build("cv.tex", fixture)

	ann := m.Annotations(`\eAcme`)
	require.Len(t, ann, 1)
	assert.Equal(t, "role", ann[0].Label)
	assert.Nil(t, m.Annotations(`\eMissing`))

	defs := m.Defaults()
	require.Len(t, defs, 2)
	assert.Equal(t, "name", defs[0].Label)
	assert.Equal(t, "email", defs[1].Label)
}

func TestResolveDescription_SkipsUnknown(t *testing.T) {
	m := Build("cv.tex", fixture)

	want := "{Vitae renderer}\n\n{Go, SQL}\n\n"
	assert.Equal(t, want, m.ResolveDescription([]string{`\pVitae`, `\sGo`}))
	assert.Equal(t, want, m.ResolveDescription([]string{`\xNope`, `\pVitae`, `\sGone`, `\sGo`}))
	assert.Empty(t, m.ResolveDescription(nil))
}

func TestResolveAnnotations(t *testing.T) {
	m := Build("cv.tex", fixture)

	groups := m.ResolveAnnotations([]string{`\pVitae`, `\eAcme`, `\xNope`})
	require.Len(t, groups, 2)
	assert.Equal(t, DefaultGroup, groups[0].Head)
	assert.Len(t, groups[0].Lines, 2)
	assert.Equal(t, `\eAcme`, groups[1].Head)
}

func TestCollections(t *testing.T) {
	m := Build("cv.tex", fixture)

	c := m.Collections()
	assert.Len(t, c, len(parser.Kinds()))
	assert.Equal(t, []string{`\eAcme`, `\eBeta`}, c["exps"])
	assert.NotNil(t, c["crss"])
	assert.Empty(t, c["crss"])
}
