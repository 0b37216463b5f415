package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"geoadmin-control/internal/service/bodsync"
	"geoadmin-control/internal/service/stacsync"
	"geoadmin-control/internal/service/usersync"
)

func newBODSyncCmd(a *app) *cobra.Command {
	var opts bodsync.Options
	cmd := &cobra.Command{
		Use:   "bod-sync",
		Short: "Import providers, attributions and datasets from the BOD",
		Long: "Reconciles the selected entity types with the legacy BOD database. Records " +
			"created by earlier imports whose source row disappeared are removed; " +
			"manually created records are never touched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			return a.runBODSync(cmd.Context(), opts, cmd.OutOrStdout(), true)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Providers, "providers", false, "reconcile providers")
	f.BoolVar(&opts.Attributions, "attributions", false, "reconcile attributions")
	f.BoolVar(&opts.Datasets, "datasets", false, "reconcile datasets")
	addRunFlags(f, &opts.Clear, &opts.DryRun, "delete all imported records before importing")
	f.BoolVar(&opts.StrictMetadata, "strict-metadata", false, "skip datasets without geocat publication or translation")
	return cmd
}

func (a *app) runBODSync(ctx context.Context, opts bodsync.Options, w io.Writer, textfile bool) (err error) {
	start := time.Now()
	if !opts.Selected() {
		_, err = bodsync.New(nil, nil, a.logger).Run(ctx, opts, w)
		return err
	}
	if err = a.openDB(); err != nil {
		return err
	}
	source, err := a.deps.OpenBOD(ctx, a.cfg.BOD)
	if err != nil {
		a.record(bodsync.Job, opts.DryRun, start, nil, err, textfile)
		return err
	}
	defer source.Close() //nolint:errcheck

	counter, err := bodsync.New(a.writeDB, source, a.logger).Run(ctx, opts, w)
	a.record(bodsync.Job, opts.DryRun, start, counter, err, textfile)
	return err
}

func newSTACSyncCmd(a *app) *cobra.Command {
	var opts stacsync.Options
	var similarity float64
	cmd := &cobra.Command{
		Use:   "stac-sync",
		Short: "Link STAC collections to datasets as package distributions",
		Long: "Creates a managed package distribution for every STAC collection whose id " +
			"matches a dataset, removes managed distributions whose collection disappeared " +
			"and warns when a collection's providers drift from the local provider.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			opts.Threshold = a.cfg.STAC.Similarity
			if cmd.Flags().Changed("similarity") {
				opts.Threshold = similarity
			}
			return a.runSTACSync(cmd.Context(), opts, cmd.OutOrStdout(), true)
		},
	}
	f := cmd.Flags()
	addRunFlags(f, &opts.Clear, &opts.DryRun, "delete all managed distributions before importing")
	f.Float64Var(&similarity, "similarity", stacsync.DefaultThreshold, "provider name similarity below which drift is reported (overrides STAC_SIMILARITY)")
	return cmd
}

func (a *app) runSTACSync(ctx context.Context, opts stacsync.Options, w io.Writer, textfile bool) error {
	start := time.Now()
	if err := a.openDB(); err != nil {
		return err
	}
	source, err := a.deps.NewSTAC(a.cfg.STAC, a.logger)
	if err != nil {
		return err
	}
	counter, err := stacsync.New(a.writeDB, source, a.logger).Run(ctx, opts, w)
	a.record(stacsync.Job, opts.DryRun, start, counter, err, textfile)
	return err
}

func newCognitoSyncCmd(a *app) *cobra.Command {
	var opts usersync.Options
	cmd := &cobra.Command{
		Use:   "cognito-sync",
		Short: "Mirror local users to the Cognito user pool",
		Long: "Creates, updates, enables, disables and deletes managed Cognito users so " +
			"that the pool matches the local users. Users without the managed marker " +
			"are never touched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			return a.runCognitoSync(cmd.Context(), opts, cmd.OutOrStdout(), true)
		},
	}
	f := cmd.Flags()
	addRunFlags(f, &opts.Clear, &opts.DryRun, "delete every managed remote user first (asks for confirmation)")
	return cmd
}

// addRunFlags registers the --clear and --dry-run flags shared by the syncs.
func addRunFlags(f *pflag.FlagSet, clearFlag, dryRun *bool, clearUsage string) {
	f.BoolVar(clearFlag, "clear", false, clearUsage)
	f.BoolVar(dryRun, "dry-run", false, "report the changes without keeping them")
}

func (a *app) runCognitoSync(ctx context.Context, opts usersync.Options, w io.Writer, textfile bool) error {
	start := time.Now()
	if err := a.openDB(); err != nil {
		return err
	}
	dir, err := a.deps.NewDirectory(a.cfg.Cognito)
	if err != nil {
		return err
	}
	counter, err := usersync.New(a.writeDB, dir, a.deps.Confirm, a.logger).Sync(ctx, opts, w)
	a.record(usersync.Job, opts.DryRun, start, counter, err, textfile)
	return err
}
