package toolchain

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/vitae/internal/apperr"
)

// Command is an executable and its leading arguments.
type Command struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args"`
}

func (c Command) with(extra ...string) []string {
	args := make([]string, 0, len(c.Args)+len(extra))
	args = append(args, c.Args...)
	return append(args, extra...)
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// File names inside a scratch directory.
const (
	DefaultInput   = "main.tex"
	DefaultOutput  = "main.pdf"
	DefaultSideMap = "main.synctex.gz"
	DefaultLog     = "main.log"
)

// Default commands.
var (
	DefaultCompile = Command{
		Name: "latexmk",
		Args: []string{"-halt-on-error", "-file-line-error", "-pdf", "-pdflatex", "-synctex=1"},
	}
	DefaultFilter = Command{
		Name: "texfot",
		Args: []string{
			"--quiet",
			"--ignore", "^(Over|Under)full ",
			"--ignore", "^This is [a-zA-Z]+TeX, Version ",
			"--ignore", "^Output written on ",
			"cat",
		},
	}
	DefaultSyncTeX = Command{Name: "synctex", Args: []string{"edit", "-o"}}
)

var lineRe = regexp.MustCompile(`(?m)^Line:(\d+)\r?$`)

// Toolchain runs the configured commands inside a scratch directory.
type Toolchain struct {
	Runner  Runner
	Compile Command
	Filter  Command
	SyncTeX Command

	Input   string
	Output  string
	SideMap string
	Log     string
}

// New returns a Toolchain with the default commands and file names.
func New(r Runner) *Toolchain {
	if r == nil {
		r = ExecRunner{}
	}
	return &Toolchain{
		Runner:  r,
		Compile: DefaultCompile,
		Filter:  DefaultFilter,
		SyncTeX: DefaultSyncTeX,
		Input:   DefaultInput,
		Output:  DefaultOutput,
		SideMap: DefaultSideMap,
		Log:     DefaultLog,
	}
}

// BuildError is a failed compiler run with everything the compiler printed.
type BuildError struct {
	Err    error
	Stdout []byte
	Stderr []byte
}

func (e *BuildError) Error() string {
	if s := strings.TrimSpace(string(e.Stderr)); s != "" {
		return fmt.Sprintf("toolchain: compile: %v: %s", e.Err, lastLine(s))
	}
	return fmt.Sprintf("toolchain: compile: %v", e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Output returns the raw compiler stdout followed by stderr.
func (e *BuildError) Output() string {
	out := strings.TrimRight(string(e.Stdout), "\n")
	if s := strings.TrimRight(string(e.Stderr), "\n"); s != "" {
		if out != "" {
			out += "\n"
		}
		out += s
	}
	return out
}

// Build compiles the input file in dir. It reports only the process
// outcome; callers check for the artifacts themselves. A failed run
// yields *BuildError.
func (t *Toolchain) Build(ctx context.Context, dir string) error {
	stdout, stderr, err := t.Runner.Run(ctx, dir, t.Compile.Name, t.Compile.with(t.Input)...)
	if err != nil {
		return &BuildError{Err: err, Stdout: stdout, Stderr: stderr}
	}
	return nil
}

// FilterLog returns the compiler log in dir with benign noise removed.
func (t *Toolchain) FilterLog(ctx context.Context, dir string) (string, error) {
	stdout, stderr, err := t.Runner.Run(ctx, dir, t.Filter.Name, t.Filter.with(t.Log)...)
	if err != nil {
		return "", &apperr.ToolingError{Op: "log filter", Detail: string(stderr), Err: err}
	}
	return string(stdout), nil
}

// Edit maps a point on a rendered page to a line of the input file. Exactly
// one Line record is expected in the mapper's output.
func (t *Toolchain) Edit(ctx context.Context, dir string, page int, x, y float64) (int, error) {
	point := strconv.Itoa(page) + ":" + formatCoord(x) + ":" + formatCoord(y) + ":" + t.Output
	stdout, stderr, err := t.Runner.Run(ctx, dir, t.SyncTeX.Name, t.SyncTeX.with(point)...)
	if err != nil {
		return 0, &apperr.ToolingError{Op: "synctex", Detail: string(stderr), Err: err}
	}
	ms := lineRe.FindAllSubmatch(stdout, -1)
	if len(ms) != 1 {
		return 0, &apperr.ToolingError{
			Op:     "synctex",
			Detail: fmt.Sprintf("expected one Line record, got %d: %s", len(ms), stdout),
		}
	}
	n, err := strconv.Atoi(string(ms[0][1]))
	if err != nil {
		return 0, &apperr.ToolingError{Op: "synctex", Detail: string(stdout), Err: err}
	}
	return n, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
