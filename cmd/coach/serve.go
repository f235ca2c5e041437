package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/logging"
	"github.com/danielpatrickdp/speaking-coach/internal/metrics"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
	"github.com/danielpatrickdp/speaking-coach/internal/server"
	"github.com/danielpatrickdp/speaking-coach/internal/session"
)

func serveCmd(load loadFunc) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx := cmd.Context()

			orc, closeOracle, err := buildOracle(cfg.Oracle)
			if err != nil {
				return fmt.Errorf("oracle: %w", err)
			}
			defer closeOracle()

			archive, err := openArchive(cfg.Reports)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			serverOpts := []server.Option{}
			observers := []session.Option{}
			if archive != nil {
				defer archive.Close()
				serverOpts = append(serverOpts, server.WithArchive(archive))
				observers = append(observers, session.WithCallObserver(func(id string) dispatch.Observer {
					return &logging.CallLogger{DB: archive.DB(), SessionID: id}
				}))
			}

			m := metrics.New()
			hub := server.NewHub(cfg.Server.AllowedOrigins...)
			go hub.Run()
			defer hub.Stop()

			opts := append([]session.Option{
				session.WithOracle(orc),
				session.WithOracleTimeout(cfg.Oracle.Timeout),
				session.WithTTL(cfg.Server.SessionTTL),
				session.WithReportSink(reportSinks(cfg.Reports, archive, m)),
				session.WithNotifier(notify.Fanout{hub, m}),
				session.WithCallObserver(func(string) dispatch.Observer { return m }),
				session.WithMetrics(m),
			}, observers...)
			reg := session.NewRegistry(lesson.NewLoader(cfg.Modules.Dir, nil), opts...)
			go reg.RunJanitor(ctx, cfg.Server.ReapInterval)

			catalog := lesson.NewCatalog(cfg.Modules.Dir, cfg.Modules.Categories)
			if cfg.Modules.Watch {
				if err := catalog.Watch(); err != nil {
					log.Printf("[LESSON] catalog watch disabled: %v", err)
				}
			}
			defer catalog.Close()

			serverOpts = append(serverOpts, server.WithHub(hub), server.WithMetrics(m))
			srv := server.New(reg, catalog, serverOpts...)
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
