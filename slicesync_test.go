package slicesync_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/slicesync"
	"github.com/bft-labs/slicesync/pkg/container"
)

func counter(state any, action container.Action) any {
	n, ok := state.(float64)
	if !ok {
		n = 1
	}
	if action.Type() == "INCREMENT" {
		n++
	}
	return n
}

func TestFacade_BackendsPersistState(t *testing.T) {
	dir := t.TempDir()

	sqliteConn, err := slicesync.OpenSQLite(filepath.Join(dir, "state.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteConn.Close() })

	dirConn, err := slicesync.OpenDir(filepath.Join(dir, "docs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dirConn.Close() })

	backends := map[string]slicesync.Connector{
		"memory": slicesync.NewMemory(),
		"sqlite": sqliteConn,
		"fs":     dirConn,
	}
	for name, conn := range backends {
		t.Run(name, func(t *testing.T) {
			reg := slicesync.NewRegistry(slicesync.WithConnector(conn))
			t.Cleanup(func() { _ = reg.Close() })

			store, err := container.New(slicesync.Wrap("n", counter), container.WithEnhancer(reg.Enhancer()))
			require.NoError(t, err)
			require.Eventually(t, reg.Ready, 2*time.Second, 5*time.Millisecond)

			store.Dispatch(container.Simple{Name: "INCREMENT"})
			require.Eventually(t, func() bool {
				doc, err := conn.Get(context.Background(), "n")
				return err == nil && string(doc.State) == "2"
			}, 2*time.Second, 5*time.Millisecond)
		})
	}
}
