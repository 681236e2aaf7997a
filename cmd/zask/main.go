package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-ask/backend/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "zask",
		Short: "Ask questions from the terminal and keep the answers you like",
		Long: `zask streams answers from the configured chat provider, saves
favorite answers locally, shares conversations and reads answers aloud.

Configuration comes from the environment, an optional .env file and the
YAML file named by ZASK_CONFIG.`,
		SilenceUsage: true,
	}

	tuiCmd := newTUICommand()
	rootCmd.AddCommand(tuiCmd, newFavoritesCommand(), newSpeakCommand())
	rootCmd.RunE = tuiCmd.RunE
	rootCmd.Flags().AddFlagSet(tuiCmd.Flags())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	return cfg, nil
}
