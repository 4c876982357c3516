package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/goodbye-jack/go-tenancy/model"
	"github.com/goodbye-jack/go-tenancy/orm"
	"github.com/spf13/cobra"
)

func newTenantsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Inspect and provision tenants",
	}
	cmd.AddCommand(newTenantsListCmd(open), newTenantsProvisionCmd(open))
	return cmd
}

func newTenantsListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known tenants with plan and features",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.dir.ListIDs(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLAN\tFEATURES")
			for _, id := range ids {
				cfg, err := a.dir.Config(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, cfg.PlanOrDefault(), strings.Join(cfg.Features, ","))
			}
			return w.Flush()
		},
	}
}

func newTenantsProvisionCmd(open opener) *cobra.Command {
	var (
		name     string
		plan     string
		features []string
	)
	cmd := &cobra.Command{
		Use:   "provision <id>",
		Short: "Register a tenant and create its database or schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			t := &model.Tenant{ID: args[0], Name: name, Plan: plan, Features: features}
			if err := orm.NewProvisioner(a.router, a.dir).Initialize(ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provisioned %s (%s)\n", t.ID, a.router.Strategy())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&plan, "plan", "", "plan (default basic)")
	cmd.Flags().StringSliceVar(&features, "features", nil, "enabled features")
	return cmd
}
