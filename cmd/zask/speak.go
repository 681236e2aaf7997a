package main

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-ask/backend/internal/logger"
	speechmodel "github.com/zhouzirui/z-ask/backend/internal/model/speech"
	"github.com/zhouzirui/z-ask/backend/internal/service/speech"
)

func newSpeakCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speak",
		Short: "Synthesize text to an audio file with the configured voice",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, _ := cmd.Flags().GetString("text")
			out, _ := cmd.Flags().GetString("out")
			voice, _ := cmd.Flags().GetString("voice")

			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Init(cfg.Log)

			if !cfg.Speech.Enabled {
				return speech.ErrSpeechDisabled
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Speech.Timeout)
			defer cancel()

			resp, err := speech.NewTTSClient(cfg.Speech, "").Synthesize(ctx, speechmodel.TTSRequest{
				Text:   text,
				Voice:  voice,
				Format: "mp3",
			})
			if err != nil {
				return errors.Wrap(err, "synthesize")
			}

			if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
				return errors.Wrap(err, "write audio")
			}
			log.Info().
				Str("file", out).
				Int("bytes", len(resp.AudioData)).
				Str("request_id", resp.RequestID).
				Msg("audio written")
			return nil
		},
	}
	cmd.Flags().String("text", "", "text to synthesize")
	cmd.Flags().String("out", "speech.mp3", "output file")
	cmd.Flags().String("voice", "", "voice id, defaults to SPEECH_TTS_VOICE")
	return cmd
}
