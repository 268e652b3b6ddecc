package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cottand/tyinfer/frontend/infer"
	"github.com/cottand/tyinfer/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var WatchCmd = &cobra.Command{
	Use:          "watch fixture.yaml",
	Short:        "Solve a fixture again every time it changes",
	RunE:         runWatch,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var watchOpts options

var watchLogger = log.DefaultLogger.With("section", "watch")

func init() {
	watchOpts = registerFlags(WatchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	settings := watchOpts.apply()
	colour, err := watchOpts.useColor(os.Stdout)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("could not get absolute path of target: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	// editors often replace files rather than writing them, so watch the directory
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("could not watch %s: %w", target, err)
	}
	return watch(ctx, cmd.OutOrStdout(), target, settings, colour, w.Events, w.Errors)
}

// watch solves target once, then again on every event about it, until ctx
// is done or the event channel closes. Each run starts a new cache
// generation and evicts the results of older ones.
func watch(ctx context.Context, out io.Writer, target string, settings infer.Settings, colour bool, events <-chan fsnotify.Event, errs <-chan error) error {
	cache, ok := settings.Cache.(*infer.MemoryCache)
	if !ok {
		cache = infer.NewMemoryCache()
		settings.Cache = cache
	}

	solve := func() {
		generation := settings.Tracker.Bump()
		cache.Evict(generation)
		if _, err := solveFile(ctx, out, target, settings, colour); err != nil {
			_, _ = fmt.Fprintf(out, "%s\n", paint(err.Error(), red, colour))
		}
	}
	solve()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			watchLogger.Debug("fixture changed", "path", ev.Name, "op", ev.Op.String())
			solve()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			watchLogger.Warn("watcher error", slog.Any("error", err))
		}
	}
}
