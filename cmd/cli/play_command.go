package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/stremur/internal/model"
	"github.com/and161185/stremur/internal/progress"
)

// Runtimes assumed when --duration is not given.
const (
	defaultMovieDuration = 7200
	defaultTVDuration    = 2700
)

func newPlayCommand(cc *commandContext) *cobra.Command {
	var (
		title, poster   string
		duration        float64
		season, episode int
		interval        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "play <movie|tv> <media-id>",
		Short: "Simulate playback and report progress until the cap or Ctrl-C",
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
			if !cmd.Flags().Changed("duration") {
				duration = defaultMovieDuration
				if key.Type == model.MediaTV {
					duration = defaultTVDuration
				}
			}

			ramp := progress.DefaultRamp
			ramp.Interval = interval
			rep := progress.NewReporter(cc.cl, ramp, interval, cc.log)
			defer rep.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			id, err := rep.Start(ctx, progress.Playback{
				Session:    s,
				Media:      key,
				Title:      title,
				PosterPath: optionalString(cmd, "poster", poster),
				Duration:   duration,
				Season:     optionalInt(cmd, "season", season),
				Episode:    optionalInt(cmd, "episode", episode),
			})
			if err != nil {
				return err
			}
			cc.log.Info("playing", zap.String("media", key.String()), zap.Duration("interval", interval))
			// an unknown session has already reached the cap
			done, err := rep.Done(id)
			switch {
			case err == nil:
				select {
				case <-done:
				case <-ctx.Done():
				}
			case !errors.Is(err, progress.ErrUnknownSession):
				return err
			}
			if err := rep.Stop(id); err != nil && !errors.Is(err, progress.ErrUnknownSession) {
				return err
			}
			e, err := cc.cl.Progress(cmd.Context(), s, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q at %.0f%%\n", key, e.Title, e.Progress)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "display title")
	cmd.Flags().StringVar(&poster, "poster", "", "poster path")
	cmd.Flags().Float64Var(&duration, "duration", 0, "runtime in seconds (default 7200 movie, 2700 tv)")
	cmd.Flags().IntVar(&season, "season", 0, "season (tv)")
	cmd.Flags().IntVar(&episode, "episode", 0, "episode (tv)")
	cmd.Flags().DurationVar(&interval, "interval", progress.DefaultRamp.Interval, "time between progress reports")
	return cmd
}
