package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
	"github.com/zhouzirui/z-ask/backend/internal/service/favorites"
	"github.com/zhouzirui/z-ask/backend/internal/storage/kv"
)

func newFavoritesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List saved answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := kv.Open(cfg.Storage.Driver, cfg.Storage.Path)
			if err != nil {
				return errors.Wrap(err, "open storage")
			}
			defer store.Close()

			saved, err := favorites.NewStore(store).Load(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "load favorites")
			}
			return printFavorites(cmd.OutOrStdout(), saved, asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "print favorites as JSON")
	return cmd
}

func printFavorites(w io.Writer, saved []answer.Favorite, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(saved)
	}

	if len(saved) == 0 {
		_, err := fmt.Fprintln(w, "No saved answers yet.")
		return err
	}

	for i, fav := range saved {
		savedAt := ""
		if fav.SavedAt != nil {
			savedAt = fav.SavedAt.Local().Format(time.DateTime)
		}
		if _, err := fmt.Fprintf(w, "%d. %s  (%s)\n   %s\n", i+1, fav.Question, savedAt, oneLine(fav.Answer.Answer, 100)); err != nil {
			return err
		}
	}
	return nil
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
