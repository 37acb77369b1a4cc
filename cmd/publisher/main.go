package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"eumembership/internal/config"
	"eumembership/internal/export"
	"eumembership/internal/logger"
	"eumembership/internal/model"
	"eumembership/internal/pipeline"
	"eumembership/internal/publish"
	"eumembership/internal/store"
)

type buildOptions struct {
	configPath  string
	input       string
	dbPath      string
	outDir      string
	prefix      string
	formats     string
	compression string
	asOf        string
	upload      bool
}

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "publisher",
		Short:         "Build daily, monthly and annual EU membership series",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return usageError{err: err}
	})
	root.AddCommand(newBuildCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Expand stored (or --input) records into series files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := build(cmd, opts); err != nil {
				fmt.Fprintln(os.Stderr, "publisher build failed:", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "path to YAML config file")
	flags.StringVar(&opts.input, "input", "", "read records from this table instead of the store (input.path or MEMBERSHIP_INPUT alone still reads the store)")
	flags.StringVar(&opts.dbPath, "db", "", "sqlite database path")
	flags.StringVar(&opts.outDir, "out", "", "output directory")
	flags.StringVar(&opts.prefix, "prefix", "", "output file name prefix")
	flags.StringVar(&opts.formats, "formats", "", "comma-separated formats (parquet,json,csv)")
	flags.StringVar(&opts.compression, "compression", "", "parquet compression (snappy, gzip, none)")
	flags.StringVar(&opts.asOf, "as-of", "", "reference date YYYY-MM-DD (default: today)")
	flags.BoolVar(&opts.upload, "upload", false, "upload the written files to S3")
	return cmd
}

func applyFlags(cmd *cobra.Command, opts *buildOptions, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input.Path = opts.input
	}
	if flags.Changed("db") {
		cfg.Store.Path = opts.dbPath
	}
	if flags.Changed("out") {
		cfg.Output.Dir = opts.outDir
	}
	if flags.Changed("prefix") {
		cfg.Output.Prefix = opts.prefix
	}
	if flags.Changed("formats") {
		cfg.Output.Formats = config.ParseList(opts.formats)
	}
	if flags.Changed("compression") {
		cfg.Output.Compression = opts.compression
	}
	if flags.Changed("as-of") {
		cfg.AsOf = opts.asOf
	}
	if flags.Changed("upload") {
		cfg.S3.Enabled = opts.upload
	}
	return cfg.Validate()
}

func build(cmd *cobra.Command, opts *buildOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, opts, cfg); err != nil {
		return err
	}

	log := logger.GetLogger()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return err
	}
	defer log.Close()

	asOf, err := cfg.AsOfDate(time.Now)
	if err != nil {
		return err
	}

	ctx := context.Background()

	st, err := pipeline.OpenStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := loadRecords(ctx, cmd, cfg, st)
	if err != nil {
		return err
	}

	exporter, err := export.New(export.Config{
		Dir:         cfg.Output.Dir,
		Prefix:      cfg.Output.Prefix,
		Formats:     cfg.Output.Formats,
		Compression: cfg.Output.Compression,
	})
	if err != nil {
		return err
	}

	publisher := &pipeline.Publisher{Store: st, Exporter: exporter}
	if cfg.S3.Enabled {
		uploader, err := publish.New(ctx, publish.Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		publisher.Uploader = uploader
	}

	summary, err := publisher.Publish(ctx, records, asOf)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if summary.Previous != nil {
		fmt.Fprintf(out, "publisher replaced run=%s (as_of=%s range=%s..%s created=%s)\n",
			summary.Previous.ID,
			summary.Previous.AsOf.Format("2006-01-02"),
			summary.Previous.Start.Format("2006-01-02"),
			summary.Previous.End.Format("2006-01-02"),
			summary.Previous.CreatedAt.Format(time.RFC3339),
		)
	}
	fmt.Fprintf(out, "publisher build complete (run=%s countries=%d range=%s..%s daily=%d monthly=%d annual=%d out=%s)\n",
		summary.Run.ID,
		summary.Run.Countries,
		summary.Run.Start.Format("2006-01-02"),
		summary.Run.End.Format("2006-01-02"),
		summary.Run.DailyRows,
		summary.Run.MonthlyRows,
		summary.Run.AnnualRows,
		cfg.Output.Dir,
	)
	if len(summary.Keys) > 0 {
		fmt.Fprintf(out, "publisher uploaded objects=%d bucket=%s\n", len(summary.Keys), cfg.S3.Bucket)
	}
	return nil
}

// loadRecords reads the table directly only when --input is passed on the
// command line. A configured input.path is for the importer; without the
// flag the publisher always reads the store.
func loadRecords(ctx context.Context, cmd *cobra.Command, cfg *config.Config, st store.Store) ([]model.MembershipRecord, error) {
	if cmd.Flags().Changed("input") && strings.TrimSpace(cfg.Input.Path) != "" {
		src, err := pipeline.OpenSource(cfg.Input)
		if err != nil {
			return nil, err
		}
		return src.LoadRecords(ctx)
	}

	records, err := st.ListMemberships(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("no membership records in store (run importer first or pass --input)")
	}
	return records, nil
}
