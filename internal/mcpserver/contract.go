package mcpserver

// ProfileFormatContract describes the profile source markup that LLM
// consumers should follow when reading or proposing entries.
const ProfileFormatContract = `# Vitae Profile Format

A profile is a LaTeX source file (` + "`" + `name.tex` + "`" + `) holding every entry a
résumé can be assembled from. Entries are macros; a document body selects
them by invoking the macro on its own line.

## Entries

` + "```" + `latex
\def\eAcme{Acme Corp, Senior Engineer
%> company: Acme Corp
%> start: 20190301
  \item Led the billing migration
}
` + "```" + `

1. An entry is declared with ` + "`" + `\def` + "`" + ` followed by a backslash, the kind prefix
   and a capitalised name. Names use ASCII letters only.
2. Kind prefixes: ` + "`" + `ed` + "`" + ` degree, ` + "`" + `lc` + "`" + ` license, ` + "`" + `p` + "`" + ` project,
   ` + "`" + `e` + "`" + ` experience, ` + "`" + `crs` + "`" + ` course (single line), ` + "`" + `s` + "`" + ` skill list,
   ` + "`" + `section` + "`" + ` misc data.
3. The first declaration of a name wins; later duplicates are ignored.

## Annotations

- ` + "`" + `%> label: value` + "`" + ` lines attach typed-out fields to an entry.
- Values split on ` + "`" + `|` + "`" + ` into fields. ` + "`" + `\n` + "`" + `, ` + "`" + `\r` + "`" + ` and ` + "`" + `\t` + "`" + ` escapes are expanded.
- An 8-digit value such as ` + "`" + `20190301` + "`" + ` is a date formatted when rendered.
- A block opened by a ` + "`" + `%>>>` + "`" + ` line holds header annotations that belong to no entry.
  The block ends at the next blank line.

## Known sections

` + "`" + `% exps = \section{Experience}` + "`" + ` binds a literal section line to the entries of a
collection. Collection ids: ` + "`" + `edus lics projs exps crss skills sections` + "`" + `.

## Tools

- ` + "`" + `get_entries` + "`" + ` lists entry ids per collection.
- ` + "`" + `get_description` + "`" + ` returns the bodies of one collection, delimited by kind.
- ` + "`" + `resolve_description` + "`" + ` returns the bodies of a chosen list of entry ids, in order.
`
