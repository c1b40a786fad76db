package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/calcsync/internal/compiler"
	"github.com/roach88/calcsync/internal/engine"
	"github.com/roach88/calcsync/internal/remote"
	"github.com/roach88/calcsync/internal/remote/httpapi"
	"github.com/roach88/calcsync/internal/store"
)

// backend is a remote service that can also list a container's items.
type backend interface {
	remote.Service
	ListItems(ctx context.Context, containerID string) ([]remote.ItemRef, error)
}

// openBackend returns an HTTP client when a service URL is configured,
// otherwise the local SQLite store.
func openBackend(opts *RootOptions, logger *slog.Logger) (backend, func() error, error) {
	cfg := opts.Config
	if cfg.Remote() {
		logger.Debug("using remote service", "url", cfg.ServiceURL)
		return httpapi.NewClient(cfg.ServiceURL, httpapi.WithClientLogger(logger)), func() error { return nil }, nil
	}
	if cfg.DB == "" {
		return nil, nil, NewExitError(ExitCommandError, "no database configured (use --db or --url)")
	}
	logger.Debug("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, st.Close, nil
}

// loadTemplate compiles the named template from path.
func loadTemplate(path, name string) (*engine.Template, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no templates path configured (use --templates)")
	}
	result, errs := compiler.Load(path, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load templates", errors.Join(errs...))
	}
	spec, ok := result.Template(name)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("template %q not found in %s", name, path))
	}
	tmpl, err := engine.FromSpec(spec)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid template %q", name), err)
	}
	return tmpl, nil
}
