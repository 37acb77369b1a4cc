package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eumembership/internal/config"
	"eumembership/internal/logger"
	"eumembership/internal/pipeline"
)

type runOptions struct {
	configPath string
	input      string
	sheet      string
	skipRows   int
	dbPath     string
	verbose    bool
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
		Use:           "importer",
		Short:         "Load EU accession and exit dates into the membership store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return usageError{err: err}
	})
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read the accession table and upsert it into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runImporter(cmd, opts); err != nil {
				fmt.Fprintln(os.Stderr, "importer run failed:", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "path to YAML config file")
	flags.StringVar(&opts.input, "input", "", "accession table (.xlsx, .csv or .tsv)")
	flags.StringVar(&opts.sheet, "sheet", "", "workbook sheet (default: first sheet)")
	flags.IntVar(&opts.skipRows, "skip-rows", 3, "rows above the header to skip")
	flags.StringVar(&opts.dbPath, "db", "", "sqlite database path (empty disables persistence)")
	flags.BoolVar(&opts.verbose, "verbose", false, "print each record")
	return cmd
}

func runImporter(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input.Path = opts.input
	}
	if flags.Changed("sheet") {
		cfg.Input.Sheet = opts.sheet
	}
	if flags.Changed("skip-rows") {
		cfg.Input.SkipRows = opts.skipRows
	}
	if flags.Changed("db") {
		cfg.Store.Path = opts.dbPath
	}

	log := logger.GetLogger()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return err
	}
	defer log.Close()

	src, err := pipeline.OpenSource(cfg.Input)
	if err != nil {
		return err
	}
	st, err := pipeline.OpenStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	records, err := pipeline.Import(ctx, src, st)
	if err != nil {
		return err
	}

	if opts.verbose {
		for _, record := range records {
			fmt.Printf("%s accession=%s exit=%s\n",
				record.Country,
				orDash(record.AccessionDate.Format("2006-01-02"), record.HasAccession()),
				orDash(record.ExitDate.Format("2006-01-02"), record.HasExit()),
			)
		}
	}
	fmt.Printf("importer run complete (source=%s input=%s records=%d db=%s)\n",
		src.Name(), cfg.Input.Path, len(records), cfg.Store.Path,
	)
	return nil
}

func orDash(value string, ok bool) string {
	if !ok {
		return "-"
	}
	return value
}
