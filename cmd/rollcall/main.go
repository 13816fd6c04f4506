package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classtrack/rollcall/config"
	"github.com/classtrack/rollcall/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const HelpBanner = `
┬─┐┌─┐┬  ┬  ┌─┐┌─┐┬  ┬
├┬┘│ ││  │  │  ├─┤│  │
┴└─└─┘┴─┘┴─┘└─┘┴ ┴┴─┘┴─┘

Meeting attendance from webcam captures.
    Version: %s
`

// pipeName is the file name that indicates stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	cfgPath string
	cfg     *config.Config
	logger  *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "rollcall",
		Short:         "Meeting attendance from webcam captures",
		Long:          fmt.Sprintf(HelpBanner, Version),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger, err := cfg.Log.Logger()
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Config file (default: ./rollcall.yaml or $HOME/.rollcall/rollcall.yaml)")

	root.AddCommand(newAnalyzeCmd(a), newServeCmd(a), newVersionCmd())
	return root
}

func main() {
	// Cancel running work on Ctrl+C (SIGINT) or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, utils.DecorateText(err.Error(), utils.ErrorMessage))
		os.Exit(1)
	}
}
