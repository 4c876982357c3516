package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configDirs []string
	root := &cobra.Command{
		Use:           "tenancy",
		Short:         "Multi-tenant service host and tenant administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&configDirs, "config-dir", nil, "directories searched for config.yaml (default . ./config /opt)")

	open := func(ctx context.Context) (*app, error) {
		return newApp(ctx, configDirs...)
	}
	root.AddCommand(
		newServeCmd(open),
		newTenantsCmd(open),
		newMigrateCmd(open),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
