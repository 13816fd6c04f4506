package main

import (
	"fmt"

	"github.com/classtrack/rollcall"
	"github.com/classtrack/rollcall/server"
	"github.com/classtrack/rollcall/store"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the attendance endpoints over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			detector, err := rollcall.NewDetector(a.cfg.Detector)
			if err != nil {
				return err
			}

			var saver server.ReportSaver
			if a.cfg.Database.URL != "" {
				db, err := store.New(ctx, a.cfg.Database.URL)
				if err != nil {
					return fmt.Errorf("failed to connect to database: %w", err)
				}
				defer db.Close()
				saver = db
			}

			proc := rollcall.NewProcessor(detector, a.cfg.Detector, a.logger)
			return server.New(proc, saver, a.logger).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	return cmd
}
