package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/dshills/contractcheck/internal/server"
)

type serveFlags struct {
	providerFlags
	addr string
}

func newServeCmd(a *app) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a, f)
		},
	}
	f.providerFlags.register(cmd)
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func runServe(ctx context.Context, a *app, f serveFlags) error {
	an, err := a.analyzer(f.providerFlags)
	if err != nil {
		return err
	}
	addr := f.addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	if !a.verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(an, server.Options{MaxUploadBytes: a.cfg.MaxUploadBytes()}, a.logger)
	return withCode(exitCodeInternal, srv.Run(ctx, addr))
}
