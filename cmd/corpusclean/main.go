// Command corpusclean turns folders of PDFs into a bounded number of clean
// plain-text group files, and carries the helper steps around it: merging
// text files, splitting large text files into parts and rendering PDFs into
// one readable PDF.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hyperifyio/corpusclean/internal/app"
	"github.com/hyperifyio/corpusclean/internal/merge"
	"github.com/hyperifyio/corpusclean/internal/render"
	"github.com/hyperifyio/corpusclean/internal/split"
)

type globalFlags struct {
	config   string
	envFiles []string
	verbose  bool
	logFile  string
	logJSON  bool

	logCloser io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	g := &globalFlags{}
	err := newRootCmd(g).ExecuteContext(ctx)
	stop()
	if g.logCloser != nil {
		_ = g.logCloser.Close()
	}
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration problems to 2 and every other failure to 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrConfig),
		errors.Is(err, merge.ErrNoInputs),
		errors.Is(err, render.ErrNoInputs):
		return 2
	default:
		return 1
	}
}

func newRootCmd(g *globalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "corpusclean",
		Short:         "Clean PDF collections into a bounded set of plain-text files",
		Version:       app.VersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.LoadEnvFiles(g.envFiles...); err != nil {
				return fmt.Errorf("%w: env file: %v", app.ErrConfig, err)
			}
			g.logCloser = app.SetupLogging(app.LogOptions{
				Verbose: g.verbose,
				JSON:    g.logJSON,
				File:    g.logFile,
				Out:     cmd.ErrOrStderr(),
			})
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "Path to a YAML or JSON config file")
	pf.StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "Dotenv file to load (repeatable)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Verbose logging")
	pf.StringVar(&g.logFile, "log.file", "", "Also write JSON logs to this rotated file")
	pf.BoolVar(&g.logJSON, "log.json", false, "Write JSON logs to stderr instead of console output")

	root.AddCommand(newPDFCmd(g), newMergeCmd(), newSplitCmd(), newRenderCmd())
	return root
}

func newPDFCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Extract, clean and group every PDF under --src into --dst",
		Example: `  corpusclean pdf --src ./papers --dst ./groups
  corpusclean pdf --config corpusclean.yaml --max.groups 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(g.config, changedOptions(cmd.Flags()))
			if err != nil {
				return err
			}
			_, err = runPDF(cmd.Context(), cfg)
			return err
		},
	}
	d := app.DefaultConfig()
	f := cmd.Flags()
	f.String("src", "", "Directory scanned recursively for PDF files")
	f.String("dst", "", "Directory receiving the group files")
	f.Int("max.groups", d.MaxGroups, "Maximum number of group files")
	f.Int("init.chars", d.InitChars, "Initial character limit per group")
	f.Int("init.docs", d.InitDocs, "Initial document limit per group")
	f.Int("min.chars", d.MinChars, "Groups shorter than this are discarded")
	f.Float64("growth", d.Growth, "Character limit multiplier applied when limits are raised")
	f.String("file.pattern", d.FilePattern, "Group file name pattern")
	f.Int("tokens.window", d.TokenWindow, "Warn when a group exceeds this token window (0 disables)")
	f.Float64("header.threshold", d.HeaderThreshold, "Share of pages a repeated edge line must appear on to be stripped")
	f.Float64("digit.ratio", d.DigitRatio, "Lines with a larger share of digits are dropped")
	f.Float64("symbol.ratio", d.SymbolRatio, "Lines with a larger share of symbols are dropped")
	f.String("allowed.punct", d.AllowedPunct, "Punctuation kept by the cleaner")
	f.String("legal.keywords", "", "Comma separated legal boilerplate keywords (replaces the defaults)")
	f.String("cache.dir", d.CacheDir, "Page cache directory (empty disables the cache)")
	f.Duration("cache.maxAge", d.CacheMaxAge, "Purge cache entries older than this (0 disables)")
	f.Int64("cache.maxBytes", d.CacheMaxBytes, "Evict least recently used cache entries above this size (0 disables)")
	f.Bool("cache.clear", d.CacheClear, "Clear the cache directory before the run")
	f.Bool("cache.strictPerms", d.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")
	f.Bool("manifest", d.Manifest, "Write manifest.json into --dst")
	return cmd
}

// changedOptions collects the flags given on the command line, keyed by
// option name, so that unset flags do not mask the environment or the config
// file.
func changedOptions(fs *pflag.FlagSet) map[string]string {
	known := map[string]bool{}
	for _, name := range app.OptionNames() {
		known[name] = true
	}
	out := map[string]string{}
	fs.Visit(func(f *pflag.Flag) {
		if known[f.Name] {
			out[f.Name] = f.Value.String()
		}
	})
	return out
}

func runPDF(ctx context.Context, cfg app.Config) (app.Summary, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return app.Summary{}, fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "merge <input_dir> <output_file>",
		Short:   "Merge text and HTML files under a directory into one normalized text file",
		Example: `  corpusclean merge ./texts merged.txt`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := merge.Run(cmd.Context(), merge.Options{InputDir: args[0], Output: args[1]})
			return err
		},
	}
}

func newSplitCmd() *cobra.Command {
	var (
		maxMB  int
		prefix string
	)
	cmd := &cobra.Command{
		Use:     "split <input_file> <output_dir>",
		Short:   "Clean a large text file line by line and split it into parts",
		Example: `  corpusclean split merged.txt ./parts --max.mb 50`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxMB <= 0 {
				return fmt.Errorf("%w: --max.mb must be positive, got %d", app.ErrConfig, maxMB)
			}
			_, err := split.Run(cmd.Context(), split.Options{
				Input:     args[0],
				OutputDir: args[1],
				MaxBytes:  int64(maxMB) * 1024 * 1024,
				Prefix:    prefix,
			})
			return err
		},
	}
	cmd.Flags().IntVar(&maxMB, "max.mb", split.DefaultMaxMB, "Maximum part size in MiB")
	cmd.Flags().StringVar(&prefix, "prefix", split.DefaultPrefix, "Part file name prefix")
	return cmd
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <pdf_dir> [output.pdf]",
		Short: "Render the text of every PDF in a directory into one wrapped PDF",
		Example: `  corpusclean render ./papers
  corpusclean render ./papers all.pdf`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := render.Options{InputDir: args[0]}
			if len(args) == 2 {
				opts.Output = args[1]
			}
			_, err := render.Run(cmd.Context(), opts)
			return err
		},
	}
}
