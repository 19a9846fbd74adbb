package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"matrixci/internal/config"
	"matrixci/internal/core"
	"matrixci/internal/storage"
	"matrixci/pkg/utils"
)

const defaultMetafile = ".yamato/config/templates.metafile"

type options struct {
	configPath string
	outDir     string
	parallel   int
	keepGoing  bool
	verbose    bool
	quiet      bool

	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "matrixci",
		Short: "Generate CI jobs for package templates",
		Long: `Generate CI pipeline jobs that test package templates across
platforms and editor tracks. Jobs are written as YAML files under the
output directory, one file per generation pass.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose, opts.quiet)
		},
	}

	configDefault := defaultMetafile
	if v, ok := os.LookupEnv("MATRIXCI_CONFIG"); ok && v != "" {
		configDefault = v
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", configDefault, "Metafile describing templates, platforms and editors (.metafile, .yml, .hcl, .jsonc)")
	root.PersistentFlags().IntVar(&opts.parallel, "parallel", 0, "Jobs built concurrently (0 uses GOMAXPROCS)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every generated job")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only log warnings and errors")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate pipeline files",
		Long: `Generate every pipeline file from the metafile and write it under --out.
A job that cannot be built fails the command unless --keep-going is set,
in which case the remaining jobs are still written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	generateCmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Directory the .yamato files are written under")
	generateCmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "Write the jobs that built even if others failed")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that generated files on disk are up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	verifyCmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Directory the .yamato files were written under")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "List generated jobs with their fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the metafile and every cross-job reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	root.AddCommand(generateCmd, verifyCmd, inspectCmd, checkCmd)
	return root
}

func newLogger(w io.Writer, verbose, quiet bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if quiet {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// generate loads the metafile and runs every pass.
func generate(ctx context.Context, opts *options) (*core.Result, error) {
	meta, err := config.LoadMetafile(opts.configPath)
	if err != nil {
		return nil, err
	}
	meta.Constants = meta.Constants.WithEnv(nil)

	gen := core.NewGenerator(meta, opts.logger)
	if opts.parallel > 0 {
		gen.Parallelism = opts.parallel
	}
	return gen.Run(ctx)
}

func jobErrors(res *core.Result) error {
	errs := make([]error, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func runGenerate(ctx context.Context, out io.Writer, opts *options) error {
	res, err := generate(ctx, opts)
	if err != nil {
		return err
	}

	problems := errors.Join(jobErrors(res), core.CheckReferences(res.Pipelines))
	if problems != nil {
		if !opts.keepGoing {
			return fmt.Errorf("generation failed:\n%w", problems)
		}
		opts.logger.Warnf("writing %d jobs despite problems:\n%v", res.JobCount(), problems)
	}

	s := storage.NewPipelineStorage(opts.outDir)
	for _, p := range res.Pipelines {
		path, err := s.SavePipeline(p)
		if err != nil {
			return fmt.Errorf("saving %s: %w", p.Path, err)
		}
		fmt.Fprintf(out, "wrote %s (%d jobs)\n", path, len(p.Jobs))
	}
	return nil
}

func runVerify(ctx context.Context, out io.Writer, opts *options) error {
	res, err := generate(ctx, opts)
	if err != nil {
		return err
	}
	if err := jobErrors(res); err != nil {
		return fmt.Errorf("generation failed:\n%w", err)
	}

	drift, err := storage.NewPipelineStorage(opts.outDir).Verify(res.Pipelines)
	if err != nil {
		return err
	}
	for _, d := range drift {
		if d.Missing {
			fmt.Fprintf(out, "missing  %s\n", d.Path)
			continue
		}
		fmt.Fprintf(out, "stale    %s (disk %s, generated %s)\n", d.Path, utils.ShortHash(d.Got), utils.ShortHash(d.Want))
	}
	if len(drift) > 0 {
		return fmt.Errorf("%d generated files are out of date, run matrixci generate", len(drift))
	}
	fmt.Fprintln(out, "generated files are up to date")
	return nil
}

func runInspect(ctx context.Context, out io.Writer, opts *options) error {
	res, err := generate(ctx, opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tJOB\tDEPS\tCMDS\tHASH")
	for _, p := range res.Pipelines {
		for _, j := range p.Jobs {
			data, err := yaml.Marshal(j)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.Path, j.ID, len(j.Dependencies), len(j.Commands), utils.ShortHash(utils.HashBytes(data)))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "error: %v\n", e)
	}
	return nil
}

func runCheck(ctx context.Context, out io.Writer, opts *options) error {
	meta, err := config.LoadMetafile(opts.configPath)
	if err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid metafile:\n%w", err)
	}

	res, err := generate(ctx, opts)
	if err != nil {
		return err
	}
	if err := errors.Join(jobErrors(res), core.CheckReferences(res.Pipelines)); err != nil {
		return fmt.Errorf("check failed:\n%w", err)
	}
	fmt.Fprintf(out, "%d jobs, all references resolve\n", res.JobCount())
	return nil
}
