package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/slicesync/pkg/docstore"
)

// cliOrigin tags documents written by the put command.
const cliOrigin = "cli"

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, closeConn, err := a.openConnector()
			if err != nil {
				return err
			}
			defer closeConn()

			doc, err := conn.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), viewOf(doc))
		},
	}
}

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <id> <json-state>",
		Short: "Overwrite a document's state",
		Long: `Overwrite a document's state. The write is tagged with the "cli" origin
unless --origin is given, so running stores treat it as a foreign change.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, state := args[0], json.RawMessage(args[1])
			if !json.Valid(state) {
				return fmt.Errorf("state for %s is not valid JSON", id)
			}

			conn, closeConn, err := a.openConnector()
			if err != nil {
				return err
			}
			defer closeConn()

			ctx := cmd.Context()
			doc, err := conn.Get(ctx, id)
			if err != nil {
				if !docstore.IsNotFound(err) {
					return err
				}
				doc = docstore.Document{ID: id}
			}
			doc.Origin = cliOrigin
			if a.cfg.Origin != "" {
				doc.Origin = a.cfg.Origin
			}
			doc.State = state

			rev, err := conn.Put(ctx, doc)
			if err != nil {
				return err
			}
			doc.Rev = rev
			return a.render(cmd.OutOrStdout(), viewOf(doc))
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var sinceNow bool
	cmd := &cobra.Command{
		Use:   "watch [id...]",
		Short: "Print document changes as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, closeConn, err := a.openConnector()
			if err != nil {
				return err
			}
			defer closeConn()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			sub, err := conn.Changes(ctx, docstore.ChangesOptions{
				Live:        true,
				IncludeDocs: true,
				SinceNow:    sinceNow,
				DocIDs:      args,
			}, func(c docstore.Change) {
				if err := a.render(out, changeViewOf(c)); err != nil {
					a.log.Warn().Err(err).Msg("render change")
				}
			})
			if err != nil {
				return err
			}
			defer sub.Cancel()

			select {
			case <-ctx.Done():
				a.log.Info().Msg("received signal, stopping...")
			case <-sub.Done():
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sinceNow, "since-now", false, "skip existing documents")
	return cmd
}
