package internal

import (
	"io"

	"github.com/starford/vitae/internal/toolchain"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	runner toolchain.Runner
	logOut io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRunner replaces the subprocess runner of the TeX toolchain.
func WithRunner(r toolchain.Runner) Option {
	return func(a *application) {
		a.runner = r
	}
}

// WithLogOutput redirects the JSON log stream.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
