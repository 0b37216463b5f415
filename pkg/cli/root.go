// Package cli implements the geoctl command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"geoadmin-control/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitUnavailable = 3 // a remote dependency could not be reached
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(newRootCmd(DefaultDeps()))
}

func run(rootCmd *cobra.Command) int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var unavailable *domain.UnavailableError
	if errors.As(err, &unavailable) {
		return ExitUnavailable
	}
	return ExitError
}

func newRootCmd(deps Deps) *cobra.Command {
	a := &app{deps: deps}
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "geoctl",
		Short: "Geodata catalog control plane",
		Long: "Synchronises the geodata catalog with the legacy BOD database, the STAC " +
			"catalog and the Cognito user pool, and serves the catalog API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	if deps.Stdout != nil {
		rootCmd.SetOut(deps.Stdout)
	}
	if deps.Stderr != nil {
		rootCmd.SetErr(deps.Stderr)
	}

	rootCmd.AddCommand(newBODSyncCmd(a))
	rootCmd.AddCommand(newSTACSyncCmd(a))
	rootCmd.AddCommand(newCognitoSyncCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		// Completion does not need configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "geoctl version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
