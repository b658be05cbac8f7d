package main

import (
	"fmt"

	"github.com/bft-labs/slicesync/internal/adapters/fs"
	"github.com/bft-labs/slicesync/internal/adapters/sqlite"
	"github.com/bft-labs/slicesync/internal/cliconfig"
	"github.com/bft-labs/slicesync/pkg/docstore"
	logAdapter "github.com/bft-labs/slicesync/pkg/log"
)

// openConnector opens the configured backend. The returned close function
// releases it.
func (a *app) openConnector() (docstore.Connector, func() error, error) {
	logger := logAdapter.NewZerologAdapterWithLogger(a.log).With(logAdapter.String("backend", a.cfg.Backend))

	switch a.cfg.Backend {
	case cliconfig.BackendMemory:
		return docstore.NewMemory(), func() error { return nil }, nil

	case cliconfig.BackendSQLite:
		c, err := sqlite.Open(a.cfg.Path,
			sqlite.WithPollInterval(a.cfg.PollInterval),
			sqlite.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil

	case cliconfig.BackendFS:
		c, err := fs.Open(a.cfg.Path,
			fs.WithDebounce(a.cfg.Debounce),
			fs.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", a.cfg.Backend)
}
