package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/slicesync/internal/cliconfig"
)

const longHelp = `Keep named slices of application state in sync with a document store.

slicesync persists every state change of a slice to its document and
merges writes made by other processes back into memory. The run command
hosts a demo store with a "counter" and a "notes" slice; get, put and
watch operate on the documents directly.

Backends:
  memory  in-process, lost on exit
  sqlite  single database file, foreign writes picked up by polling
  fs      one JSON file per document, foreign writes picked up by fsnotify`

var exampleUsage = strings.TrimSpace(`
  slicesync run --backend sqlite --path ./state.db
  slicesync watch counter --backend fs --path ./docs
  slicesync put counter '{"x":7}' --backend fs --path ./docs
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration and logger to subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig(), log: cliconfig.Logger()}

	root := &cobra.Command{
		Use:           "slicesync",
		Short:         "Keep named slices of application state in sync with a document store",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.slicesync/config.toml)")
	flags.StringVar(&a.cfg.Backend, "backend", a.cfg.Backend, "document store backend: memory, sqlite or fs")
	flags.StringVar(&a.cfg.Path, "path", a.cfg.Path, "database file (sqlite) or directory (fs)")
	flags.StringVar(&a.cfg.Origin, "origin", a.cfg.Origin, "origin tag stamped on writes (default: random per process)")
	flags.DurationVar(&a.cfg.PollInterval, "poll", a.cfg.PollInterval, "sqlite change feed poll interval")
	flags.DurationVar(&a.cfg.Debounce, "debounce", a.cfg.Debounce, "fs change feed debounce delay")
	flags.StringVar(&a.cfg.Output, "output", a.cfg.Output, "output format: json or yaml")
	flags.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve Prometheus metrics on this address (run only)")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")
	if err := flags.MarkHidden("debounce"); err != nil {
		a.log.Info().Err(err).Msg("failed to hide debounce flag")
	}

	root.AddCommand(
		newRunCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newWatchCmd(a),
	)

	if err := root.Execute(); err != nil {
		a.log.Error().Err(err).Msg("slicesync")
		os.Exit(1)
	}
}

// loadConfig layers the config file, then SLICESYNC_* variables, under the
// flags that were set explicitly.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	lvl, _ := a.cfg.Level()
	a.log = a.log.Level(lvl)
	a.log.Debug().Interface("config", a.cfg).Msg("configuration")
	return nil
}
