// Command gridappend appends granule files to a chunked array store.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Every run scopes the logger with a run id
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gridappend"
	"gridappend/config"
	"gridappend/dataset"
	"gridappend/granule"
	"gridappend/staging"
	"gridappend/store"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gridappend",
		Short: "Append granule files to a chunked array store",
		Long: `gridappend merges granule files into an existing chunked array store
along an ordering dimension, dropping re-delivered duplicate steps and
optionally trimming steps outside a retention window. Inputs and stores
may live on S3; they are staged to the local filesystem for the run.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadJob(cmd)
			if err != nil {
				return err
			}

			logger := buildLogger(job.LogLevel).With("run_id", uuid.NewString())

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, logger, job)
		},
	}

	flags := rootCmd.Flags()
	flags.StringP("input", "i", "", "granule source: s3://bucket/prefix or a local directory")
	flags.StringP("store", "z", "", "existing store to append to: s3:// URL, directory, or SQLite file (empty: first run)")
	flags.StringP("output", "o", "", "destination store locator: directory or SQLite file")
	flags.StringP("time-dim", "t", "time", "name of the ordering dimension")
	flags.StringP("pattern", "p", granule.DefaultPattern, "glob matching granule files under the input")
	flags.StringP("duration", "d", "", "retention window as a Go duration, e.g. 720h (default unbounded)")
	flags.StringSlice("variables", nil, "data variables to keep (default: the store's, or the first incoming)")
	flags.String("codec", "zstd", "chunk compression: zstd, s2, lz4, snappy, brotli, or none")
	flags.Int("level", 0, "compression level for the chosen codec")
	flags.IntSlice("chunks", nil, "chunk block sizes per axis (default 5,50,50)")
	flags.Bool("overwrite", false, "replace the output store if it already exists")
	flags.Bool("write-empty-chunks", false, "write chunks holding only the fill value instead of suppressing them")
	flags.String("log-level", "info", "log verbosity: debug, info, warn, or error")
	flags.String("job", "", "YAML job file supplying any of the above; explicit flags win")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// loadJob merges the optional YAML job file with the command line: the
// file supplies defaults, flags the user actually set override it, and
// built-in defaults fill whatever remains.
func loadJob(cmd *cobra.Command) (*config.Job, error) {
	flags := cmd.Flags()

	job := &config.Job{}
	if path, _ := flags.GetString("job"); path != "" {
		parsed, err := config.ParseFile(path)
		if err != nil {
			return nil, err
		}
		job = parsed
	}

	if flags.Changed("input") {
		job.Input, _ = flags.GetString("input")
	}
	if flags.Changed("store") {
		job.Store, _ = flags.GetString("store")
	}
	if flags.Changed("output") {
		job.Output, _ = flags.GetString("output")
	}
	if flags.Changed("time-dim") {
		job.TimeDim, _ = flags.GetString("time-dim")
	}
	if flags.Changed("pattern") {
		job.Pattern, _ = flags.GetString("pattern")
	}
	if flags.Changed("duration") {
		job.Duration, _ = flags.GetString("duration")
	}
	if flags.Changed("variables") {
		job.Variables, _ = flags.GetStringSlice("variables")
	}
	if flags.Changed("codec") {
		job.Codec, _ = flags.GetString("codec")
	}
	if flags.Changed("level") {
		job.Level, _ = flags.GetInt("level")
	}
	if flags.Changed("chunks") {
		job.Chunks, _ = flags.GetIntSlice("chunks")
	}
	if flags.Changed("overwrite") {
		job.Overwrite, _ = flags.GetBool("overwrite")
	}
	if flags.Changed("write-empty-chunks") {
		job.WriteEmptyChunks, _ = flags.GetBool("write-empty-chunks")
	}
	if flags.Changed("log-level") {
		job.LogLevel, _ = flags.GetString("log-level")
	}

	job.Defaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

func buildLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, logger *slog.Logger, job *config.Job) error {
	releases := &staging.ReleaseSet{}
	defer func() {
		if err := releases.ReleaseAll(); err != nil {
			logger.Warn("staging cleanup failed", "error", err)
		}
	}()

	// The stager and its S3 client are built on first use; a fully local
	// run never touches AWS configuration.
	var stager *staging.Stager
	stage := func(rawURL string) (string, error) {
		if stager == nil {
			client, err := staging.NewClient(ctx, staging.ClientConfig{
				Region:          job.S3.Region,
				Endpoint:        job.S3.Endpoint,
				AccessKeyID:     job.S3.AccessKeyID,
				SecretAccessKey: job.S3.SecretAccessKey,
				UsePathStyle:    job.S3.UsePathStyle,
			})
			if err != nil {
				return "", err
			}
			s, err := staging.New(client, staging.WithLogger(logger))
			if err != nil {
				return "", err
			}
			stager = s
		}

		area, err := stager.Stage(ctx, rawURL)
		if err != nil {
			return "", err
		}
		releases.Add(area)

		return area.Dir(), nil
	}

	existing, err := loadExisting(ctx, job.Store, stage, logger)
	if err != nil {
		return err
	}

	inputDir := job.Input
	if strings.HasPrefix(job.Input, "s3://") {
		inputDir, err = stage(job.Input)
		if err != nil {
			return fmt.Errorf("stage input: %w", err)
		}
	}

	incoming, err := granule.OpenPattern(filepath.Join(inputDir, job.Pattern), job.TimeDim)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	logger.Info("opened incoming dataset",
		"pattern", job.Pattern,
		"variables", incoming.VarNames(),
	)

	spec, err := job.Compression()
	if err != nil {
		return err
	}
	maxDuration, err := job.MaxDuration()
	if err != nil {
		return err
	}

	opts := []gridappend.RunOption{
		gridappend.WithCodec(spec),
		gridappend.WithWriteEmptyChunks(job.WriteEmptyChunks),
		gridappend.WithLogger(logger),
	}
	if len(job.Variables) > 0 {
		opts = append(opts, gridappend.WithVariables(job.Variables...))
	}
	if maxDuration != nil {
		opts = append(opts, gridappend.WithMaxDuration(*maxDuration))
	}
	if len(job.Chunks) > 0 {
		opts = append(opts, gridappend.WithChunkShape(job.Chunks...))
	}

	encoded, report, err := gridappend.Run(existing, incoming, job.TimeDim, opts...)
	if err != nil {
		return err
	}

	mode := store.CreateExclusive
	if job.Overwrite {
		mode = store.CreateOverwrite
	}
	if err := store.Write(ctx, encoded, job.Output, mode, store.WithLogger(logger)); err != nil {
		return fmt.Errorf("write store: %w", err)
	}

	logger.Info("append complete",
		"output", job.Output,
		"samples", report.Samples,
		"duplicates_dropped", len(report.DroppedDuplicates),
		"trimmed", report.TrimmedPrefix,
	)

	return nil
}

// loadExisting opens the store named by locator, staging it first when it
// lives on S3. An empty locator (or the literal "none") means a first run
// with no existing data.
func loadExisting(ctx context.Context, locator string, stage func(string) (string, error), logger *slog.Logger) (*dataset.Dataset, error) {
	if locator == "" || locator == "none" {
		logger.Info("no existing store, starting a new one")

		return nil, nil
	}

	if strings.HasPrefix(locator, "s3://") {
		dir, err := stage(locator)
		if err != nil {
			return nil, fmt.Errorf("stage store: %w", err)
		}
		base, err := staging.PrefixBase(locator)
		if err != nil {
			return nil, fmt.Errorf("stage store: %w", err)
		}
		locator = filepath.Join(dir, base)
	}

	ds, err := store.Open(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("opened existing store",
		"locator", locator,
		"variables", ds.VarNames(),
	)

	return ds, nil
}
