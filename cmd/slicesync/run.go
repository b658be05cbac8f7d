package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/slicesync/internal/metrics"
	"github.com/bft-labs/slicesync/pkg/container"
	logAdapter "github.com/bft-labs/slicesync/pkg/log"
	"github.com/bft-labs/slicesync/pkg/slicesync"
)

// errQuit ends the command loop without an error.
var errQuit = errors.New("quit")

const flushTimeout = 5 * time.Second

const runHelp = `Host a store with a "counter" slice (initially {"x":5}) and a "notes"
slice, and drive it with commands read from stdin:

  inc, dec         change the counter
  note <text>      append a note
  pause, resume    suspend and resume persistence
  reinit [slice]   reload one slice, or all, from storage
  state            print the whole state
  synced           print whether every write has settled
  quit             flush pending writes and exit

The state is printed whenever it changes, including when another process
writes one of the documents.`

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Host a demo store synced to the configured backend",
		Long:  runHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, closeConn, err := a.openConnector()
			if err != nil {
				return err
			}
			defer closeConn()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := []slicesync.Option{
				slicesync.WithConnector(conn),
				slicesync.WithLogger(logAdapter.NewZerologAdapterWithLogger(a.log)),
				slicesync.WithContext(ctx),
				slicesync.WithHooks(slicesync.Hooks{
					OnReady: func(slicesync.Host) { a.log.Info().Msg("all slices loaded") },
				}),
			}
			if a.cfg.Origin != "" {
				opts = append(opts, slicesync.WithOriginTag(a.cfg.Origin))
			}

			var promReg *prometheus.Registry
			if a.cfg.MetricsAddr != "" {
				promReg = prometheus.NewRegistry()
				m, err := metrics.New(promReg)
				if err != nil {
					return fmt.Errorf("register metrics: %w", err)
				}
				opts = append(opts, slicesync.WithObserver(m))
			}

			reg := slicesync.NewRegistry(opts...)
			defer reg.Close()

			store, err := container.New(demoReducer(), container.WithEnhancer(reg.Enhancer()))
			if err != nil {
				return err
			}
			a.log.Info().Str("origin", reg.Origin()).Strs("slices", reg.Slices()).Msg("store started")

			s := &session{app: a, store: store, reg: reg, out: cmd.OutOrStdout()}
			unsubscribe := store.Subscribe(s.printIfChanged)
			defer unsubscribe()

			g, gctx := errgroup.WithContext(ctx)
			if promReg != nil {
				serveMetrics(gctx, g, a.cfg.MetricsAddr, promReg)
			}
			lines := readLines(cmd.InOrStdin())
			g.Go(func() error { return s.loop(gctx, lines) })
			err = g.Wait()

			fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if ferr := reg.Flush(fctx); ferr != nil {
				a.log.Warn().Err(ferr).Strs("slices", reg.Slices()).Msg("exiting with unsaved changes")
			}

			if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// session executes stdin commands against one store.
type session struct {
	app   *app
	store *container.Store
	reg   *slicesync.Registry
	out   io.Writer

	mu   sync.Mutex
	last string
}

func (s *session) loop(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := s.handle(line); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
	}
}

func (s *session) handle(line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return nil
	case "inc":
		s.store.Dispatch(container.Simple{Name: actionIncrement})
	case "dec":
		s.store.Dispatch(container.Simple{Name: actionDecrement})
	case "note":
		if arg == "" {
			return errors.New("note needs text")
		}
		s.store.Dispatch(container.Simple{Name: actionAddNote, Payload: arg})
	case "pause":
		s.store.Dispatch(slicesync.PauseSaving())
	case "resume":
		s.store.Dispatch(slicesync.ResumeSaving())
	case "reinit":
		action, err := s.reg.Reinit(arg)
		if err != nil {
			return err
		}
		s.store.Dispatch(action)
	case "state":
		return s.app.render(s.out, s.store.State())
	case "synced":
		return s.app.render(s.out, map[string]any{
			"synced": s.reg.IsSynced(),
			"ready":  s.reg.Ready(),
		})
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// printIfChanged renders the state after a dispatch that changed it.
func (s *session) printIfChanged() {
	state := s.store.State()
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if string(raw) == s.last {
		return
	}
	s.last = string(raw)
	if err := s.app.render(s.out, state); err != nil {
		s.app.log.Warn().Err(err).Msg("render state")
	}
}

// readLines feeds r line by line into the returned channel, which is
// closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}
