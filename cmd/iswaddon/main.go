package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/insushim/iswaddon/internal/config"
)

// Set via -ldflags.
var version = "dev"

type app struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   *log.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		color.Fprintf(os.Stderr, "<red>error:</> %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "iswaddon",
		Short:         "Build Minecraft Bedrock add-ons",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newBuildCmd(a),
		newWatchCmd(a),
		newInitCmd(a),
		newServeCmd(a),
		newConceptCmd(a),
		newInspectCmd(a),
		newRemoteCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cfg.Log.Level, "iswaddon")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the installed version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version is %s\n", version)
		},
	}
}
