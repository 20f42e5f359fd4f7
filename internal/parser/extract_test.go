package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ParagraphBody(t *testing.T) {
	res := Extract("\\defined\\pFoo\nBuilt a thing.\n\n", Project)

	assert.Equal(t, []string{`\pFoo`}, res.Entries)
	assert.Equal(t, "Built a thing.", res.Bodies[`\pFoo`])
	assert.Empty(t, res.Annotations[`\pFoo`])
}

func TestExtract_PlainDefMarker(t *testing.T) {
	src := "\\def\\eAcme{\\job{Acme}{Engineer}\n  \\begin{itemize}\n  \\item Shipped it\n  \\end{itemize}}\n\n\\def\\eBeta{Beta}\n"
	res := Extract(src, Experience)

	require.Equal(t, []string{`\eAcme`, `\eBeta`}, res.Entries)
	assert.Equal(t, "{\\job{Acme}{Engineer}\n  \\begin{itemize}\n  \\item Shipped it\n  \\end{itemize}}", res.Bodies[`\eAcme`])
	assert.Equal(t, "{Beta}", res.Bodies[`\eBeta`])
}

func TestExtract_SingleLine(t *testing.T) {
	src := "\\def\\crsAlgo{Algorithms, 2019}\n\\def\\crsNet{Networks}\nnot part\n\n"
	res := Extract(src, Course)

	require.Equal(t, []string{`\crsAlgo`, `\crsNet`}, res.Entries)
	assert.Equal(t, "{Algorithms, 2019}", res.Bodies[`\crsAlgo`])
	assert.Equal(t, "{Networks}", res.Bodies[`\crsNet`])
}

func TestExtract_NoDeclarations(t *testing.T) {
	res := Extract("\\documentclass{article}\n\\begin{document}\n", Skill)

	assert.NotNil(t, res.Entries)
	assert.Empty(t, res.Entries)
	assert.NotNil(t, res.Bodies)
	assert.NotNil(t, res.Annotations)
}

func TestExtract_MalformedInput(t *testing.T) {
	for _, src := range []string{"", "\\def", "\\def\\p", "\\def\\pfoo\n", "\\def\\zzFoo{x}\n\n", "  \\def\\pFoo{indented}\n\n"} {
		res := Extract(src, Project)
		assert.Empty(t, res.Entries, "src %q", src)
	}
}

func TestExtract_TokenRepeatedEarlier(t *testing.T) {
	// The token appears in a comment before it is declared; the body must
	// come from the declaration, not the first textual occurrence.
	src := "% remember to update \\pFoo later\n\n\\def\\pFoo{Real body}\n\n"
	res := Extract(src, Project)

	require.Equal(t, []string{`\pFoo`}, res.Entries)
	assert.Equal(t, "{Real body}", res.Bodies[`\pFoo`])
}

func TestExtract_DuplicateDeclarationKeepsFirst(t *testing.T) {
	src := "\\def\\pFoo{one}\n\n\\def\\pFoo{two}\n\n"
	res := Extract(src, Project)

	assert.Equal(t, []string{`\pFoo`}, res.Entries)
	assert.Equal(t, "{one}", res.Bodies[`\pFoo`])
}

func TestExtract_PrefixesDoNotCollide(t *testing.T) {
	src := "\\def\\edMIT{MIT}\n\n\\def\\eAcme{Acme}\n\n\\def\\sLang{Go}\n\n\\def\\sectionExtra{Extra}\n\n\\def\\lcAWS{AWS}\n\n\\def\\pVitae{Vitae}\n\n"

	assert.Equal(t, []string{`\edMIT`}, Extract(src, Degree).Entries)
	assert.Equal(t, []string{`\eAcme`}, Extract(src, Experience).Entries)
	assert.Equal(t, []string{`\sLang`}, Extract(src, Skill).Entries)
	assert.Equal(t, []string{`\sectionExtra`}, Extract(src, Section).Entries)
	assert.Equal(t, []string{`\lcAWS`}, Extract(src, License).Entries)
	assert.Equal(t, []string{`\pVitae`}, Extract(src, Project).Entries)
}

func TestExtract_Deterministic(t *testing.T) {
	src := "\\def\\pA{a\n%> k: v}\n\n\\def\\pB{b}\n\n"
	assert.Equal(t, Extract(src, Project), Extract(src, Project))
}

func TestExtract_UnterminatedParagraphRunsToEnd(t *testing.T) {
	res := Extract("\\def\\pLast{tail\nmore}", Project)
	assert.Equal(t, "{tail\nmore}", res.Bodies[`\pLast`])
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"par removed everywhere", "a\\par b\\par", "a b"},
		{"parbox kept", "\\parbox{x}", "\\parbox{x}"},
		{"first href only", "\\hhref{u1}one \\ghhref{u2}two", "one \\ghhref{u2}two"},
		{"ghhref", "\\ghhref{https://x}{Title}", "{Title}"},
		{"trim", "  \n body \n ", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestIsDeclarationLine(t *testing.T) {
	assert.True(t, IsDeclarationLine(`\def\pFoo{x}`, `\pFoo`))
	assert.True(t, IsDeclarationLine(`\defined\pFoo`, `\pFoo`))
	assert.False(t, IsDeclarationLine(`\def\pFooBar{x}`, `\pFoo`))
	assert.False(t, IsDeclarationLine(` \def\pFoo{x}`, `\pFoo`))
	assert.False(t, IsDeclarationLine(`\pFoo`, `\pFoo`))
}

func TestParseToken(t *testing.T) {
	k, ok := ParseToken(`\crsAlgo`)
	require.True(t, ok)
	assert.Equal(t, Course, k)

	_, ok = ParseToken(`\section{Education}`)
	assert.False(t, ok)
	_, ok = ParseToken(`\xFoo`)
	assert.False(t, ok)
	_, ok = ParseToken(`pFoo`)
	assert.False(t, ok)
}

func TestKindTable(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds() {
		assert.False(t, seen[k.Prefix()], "duplicate prefix %s", k.Prefix())
		seen[k.Prefix()] = true

		kc, ok := KindByCollection(k.Collection())
		require.True(t, ok)
		assert.Equal(t, k, kc)
	}
	assert.Equal(t, SingleLine, Course.Mode())
	assert.Equal(t, "project", Project.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
