package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	httpapi "github.com/and161185/stremur/internal/server/http"
)

func parseKey(typ, id string) (model.MediaKey, error) {
	mt, err := model.ParseMediaType(typ)
	if err != nil {
		return model.MediaKey{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return model.MediaKey{}, fmt.Errorf("%w: media id %q", errs.ErrValidation, id)
	}
	return model.MediaKey{Type: mt, ID: n}, nil
}

func optionalString(cmd *cobra.Command, flag, v string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &v
}

func optionalInt(cmd *cobra.Command, flag string, v int) *int {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &v
}

func newHistoryCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "history", Short: "Watch history of the active profile"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List entries, most recently watched first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			entries, err := cc.cl.History(cmd.Context(), s, limit)
			if err != nil {
				return err
			}
			out := make([]httpapi.HistoryEntryDTO, 0, len(entries))
			for _, e := range entries {
				out = append(out, httpapi.HistoryToDTO(e))
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum entries (0 = all)")

	get := &cobra.Command{
		Use:   "get <movie|tv> <media-id>",
		Short: "Show progress for one title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			e, err := cc.cl.Progress(cmd.Context(), s, key)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.HistoryToDTO(*e))
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <movie|tv> <media-id>",
		Short: "Remove one title from history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			deleted, err := cc.cl.DeleteProgress(cmd.Context(), s, key)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.DeletedResponse{Deleted: deleted})
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			n, err := cc.cl.ClearHistory(cmd.Context(), s)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.ClearedResponse{Removed: n})
			return nil
		},
	}

	cmd.AddCommand(list, get, rm, clearCmd)
	return cmd
}

func newProgressCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "progress", Short: "Record playback progress"}

	var (
		title, poster   string
		value, duration float64
		season, episode int
	)
	set := &cobra.Command{
		Use:   "set <movie|tv> <media-id>",
		Short: "Create or update the history entry of a title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			id, err := cc.cl.UpsertProgress(cmd.Context(), s, model.ProgressUpdate{
				Media:      key,
				Title:      title,
				PosterPath: optionalString(cmd, "poster", poster),
				Progress:   value,
				Duration:   duration,
				Season:     optionalInt(cmd, "season", season),
				Episode:    optionalInt(cmd, "episode", episode),
			})
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.IDResponse{ID: id})
			return nil
		},
	}
	set.Flags().StringVar(&title, "title", "", "display title")
	set.Flags().StringVar(&poster, "poster", "", "poster path")
	set.Flags().Float64Var(&value, "progress", 0, "percent watched")
	set.Flags().Float64Var(&duration, "duration", 0, "runtime in seconds")
	set.Flags().IntVar(&season, "season", 0, "season (tv)")
	set.Flags().IntVar(&episode, "episode", 0, "episode (tv)")

	cmd.AddCommand(set)
	return cmd
}

func newWatchlistCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "watchlist", Short: "Bookmarks of the active profile"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List bookmarks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			entries, err := cc.cl.Watchlist(cmd.Context(), s)
			if err != nil {
				return err
			}
			out := make([]httpapi.WatchlistEntryDTO, 0, len(entries))
			for _, e := range entries {
				out = append(out, httpapi.WatchlistToDTO(e))
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}

	var title, poster string
	add := &cobra.Command{
		Use:   "add <movie|tv> <media-id>",
		Short: "Bookmark a title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			id, err := cc.cl.AddToWatchlist(cmd.Context(), s, model.WatchlistAdd{
				Media:      key,
				Title:      title,
				PosterPath: optionalString(cmd, "poster", poster),
			})
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.IDResponse{ID: id})
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "display title")
	add.Flags().StringVar(&poster, "poster", "", "poster path")

	rm := &cobra.Command{
		Use:   "rm <movie|tv> <media-id>",
		Short: "Remove a bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			removed, err := cc.cl.RemoveFromWatchlist(cmd.Context(), s, key)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.DeletedResponse{Deleted: removed})
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check <movie|tv> <media-id>",
		Short: "Report whether a title is bookmarked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.session()
			if err != nil {
				return err
			}
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			in, err := cc.cl.InWatchlist(cmd.Context(), s, key)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.ContainsResponse{InWatchlist: in})
			return nil
		},
	}

	cmd.AddCommand(list, add, rm, check)
	return cmd
}
