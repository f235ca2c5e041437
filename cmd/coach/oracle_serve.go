package main

import (
	"fmt"
	"log"
	"net"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/speaking-coach/internal/config"
	"github.com/danielpatrickdp/speaking-coach/internal/oracle"
)

// oracleServeCmd exposes the OpenAI backend over gRPC so several coach
// servers can share one key, limiter and cache.
func oracleServeCmd(load loadFunc) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "oracle-serve",
		Short: "Serve the language oracle over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			oc := cfg.Oracle
			if oc.Backend == config.BackendGRPC {
				// serving a remote oracle from a remote oracle would loop
				oc.Backend = config.BackendOpenAI
			}
			backend, closeOracle, err := buildOracle(oc)
			if err != nil {
				return fmt.Errorf("oracle: %w", err)
			}
			defer closeOracle()

			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			srv := grpc.NewServer()
			oracle.RegisterOracleServer(srv, backend)

			go func() {
				<-cmd.Context().Done()
				srv.GracefulStop()
			}()
			log.Printf("[ORACLE] grpc listening on %s", lis.Addr())
			if err := srv.Serve(lis); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":50051", "gRPC listen address")
	return cmd
}
