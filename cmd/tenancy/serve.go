package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/goodbye-jack/go-tenancy/http"
	"github.com/goodbye-jack/go-tenancy/log"
	tenantmw "github.com/goodbye-jack/go-tenancy/middleware/tenant"
	"github.com/goodbye-jack/go-tenancy/rbac"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/spf13/cobra"
)

func newServeCmd(open opener) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP host with tenant resolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.cleanup()

			serviceName := a.v.GetString(utils.ConfigNameServiceName)
			if serviceName == "" {
				serviceName = "tenancy"
			}
			log.LoadPrintProjectName(serviceName)

			access, err := rbac.NewAccessClient()
			if err != nil {
				return err
			}
			if err := access.SyncFromDirectory(ctx, a.dir); err != nil {
				log.Warnf("sync tenant plans: %v", err)
			}

			tc := a.tenancy
			server := http.NewHTTPServer(serviceName, a.dir,
				http.WithSessionRouter(a.router),
				http.WithAccessClient(access),
				http.WithTenantOptions(
					tenantmw.WithHeaderName(tc.HeaderName),
					tenantmw.WithExcludePaths(tc.ExcludePaths...),
					tenantmw.WithValidation(tc.Validate),
					tenantmw.WithResolver(tenantmw.ChainResolver(
						tenantmw.ContextResolver(utils.TenantIdentityKey),
						tenantmw.HeaderResolver(tc.HeaderName),
						tenantmw.BearerResolver(tc.JWTSecret),
					)),
				),
			)
			if addr == "" {
				addr = a.v.GetString(utils.ConfigNameAddr)
			}
			return server.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config addr)")
	return cmd
}
