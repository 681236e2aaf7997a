package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-ask/backend/internal/app"
	"github.com/zhouzirui/z-ask/backend/internal/config"
	"github.com/zhouzirui/z-ask/backend/internal/logger"
	"github.com/zhouzirui/z-ask/backend/internal/tui"
)

func newTUICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive question screen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logFile, _ := cmd.Flags().GetString("log-file")
			player, _ := cmd.Flags().GetString("player")
			return runTUI(cmd.Context(), logFile, player)
		},
	}
	cmd.Flags().String("log-file", filepath.Join("data", "zask.log"), "where to write logs while the screen is open")
	cmd.Flags().String("player", os.Getenv("ZASK_AUDIO_PLAYER"), "command that plays mp3 audio from stdin, e.g. \"mpv -\"")
	return cmd
}

func runTUI(ctx context.Context, logPath, player string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// the screen owns the terminal, so logs go to a file
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return errors.Wrap(err, "create log directory")
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	defer logFile.Close()
	logger.Setup(logFile, config.LogConfig{Level: cfg.Log.Level, Format: "json"})

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	screenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	screenDone := make(chan struct{})
	go func() {
		defer close(screenDone)
		_ = a.Chat.Run(screenCtx)
	}()

	model := tui.New(screenCtx, a.Chat, commandPlayer(player))
	defer model.Close()

	_, runErr := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()

	cancel()
	<-screenDone
	a.Chat.Wait()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return errors.Wrap(runErr, "run screen")
	}
	return nil
}

// commandPlayer pipes audio into an external player. An empty command
// disables playback.
func commandPlayer(command string) tui.Player {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil
	}
	return func(ctx context.Context, audio []byte) error {
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Stdin = bytes.NewReader(audio)
		if out, err := cmd.CombinedOutput(); err != nil {
			log.Warn().Err(err).Str("player", args[0]).Str("output", string(out)).Msg("audio playback failed")
			return errors.Wrapf(err, "play audio with %s", args[0])
		}
		return nil
	}
}
