package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/blockedit/internal/config"
	"github.com/conneroisu/blockedit/internal/editor"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <dir>",
	Aliases: []string{"w"},
	Short:   "Re-normalize HTML files as they change",
	Long: `Watch a directory tree and normalize every .html file that is created
or modified. Each result is written next to its input with the configured
suffix (default ".normalized.html").

Examples:
  blockedit watch ./content                 # Watch a directory
  blockedit watch ./content --initial       # Normalize existing files first
  blockedit watch ./content -v              # Report every correction`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchVerbose bool
	watchInitial bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Report every correction")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "Normalize existing files before watching")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	root := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ed, err := editor.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ed.Close(context.Background())

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.HTMLFilter)
	fileWatcher.AddFilter(watcher.SuffixFilter(cfg.Watch.Suffix))
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddHandler(watchHandler(ed, cfg, logger, cmd.OutOrStdout()))

	if err := fileWatcher.AddRecursive(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	if watchInitial {
		n, err := normalizeTree(ctx, ed, cfg, root, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("Normalized %d existing file(s)", n)))
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("Watching "+root+" (Ctrl+C to stop)"))

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "Stopping file watcher...")
	return nil
}

func watchHandler(ed *editor.Editor, cfg *config.Config, logger logging.Logger, out io.Writer) watcher.ChangeHandler {
	return func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, event := range events {
			if event.Type == watcher.EventTypeDeleted || event.Type == watcher.EventTypeRenamed {
				continue
			}
			op := logging.StartOperation(logger, "normalize "+event.Path)
			if err := normalizeAndReport(ed, cfg, event.Path, out); err != nil {
				op.EndWithError(ctx, err)
				continue
			}
			op.End(ctx)
		}
		return nil
	}
}

// normalizeTree normalizes every HTML file under root.
func normalizeTree(ctx context.Context, ed *editor.Editor, cfg *config.Config, root string, out io.Writer) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !watcher.HTMLFilter(path) || !watcher.SuffixFilter(cfg.Watch.Suffix)(path) || !watcher.NoHiddenFilter(path) {
			return nil
		}
		if err := normalizeAndReport(ed, cfg, path, out); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func normalizeAndReport(ed *editor.Editor, cfg *config.Config, path string, out io.Writer) error {
	target, result, err := normalizeFile(ed, path, cfg.Watch.Suffix)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s -> %s (%d correction(s))\n",
		successStyle.Render("normalized"), path, target, len(result.Corrections))
	if watchVerbose {
		printCorrections(out, result)
	}
	return nil
}

// normalizeFile normalizes path and writes the output next to it.
func normalizeFile(ed *editor.Editor, path, suffix string) (string, *NormalizeResult, error) {
	markup, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	result, err := normalizeMarkup(ed, string(markup))
	if err != nil {
		return "", nil, err
	}
	result.Source = path

	target := outputPath(path, suffix)
	if err := os.WriteFile(target, []byte(result.HTML+"\n"), 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, result, nil
}

// outputPath maps page.html to page<suffix>.
func outputPath(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}
