package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

// newRootCmd builds the sbomscan command tree. The exit code of a scan run
// is stored in exitCode; returned errors are configuration errors.
func newRootCmd(a *app, exitCode *int) *cobra.Command {
	runE := func(cmd *cobra.Command, _ []string) error {
		code, err := a.run(cmd.Context())
		*exitCode = code
		return err
	}

	rootCmd := &cobra.Command{
		Use:           "sbomscan",
		Short:         "Scan a repository SBOM with the remote scan service",
		Long:          "sbomscan generates a CycloneDX SBOM for a repository path, submits it to the scan service, waits for the verdict and reports the findings as GitHub Actions outputs and job summary.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "defaults file (overrides SBOMSCAN_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging (overrides INPUT_DEBUG)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Generate, submit and evaluate the SBOM (default)",
		Args:  cobra.NoArgs,
		RunE:  runE,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sbomscan "+version)
		},
	})

	return rootCmd
}
