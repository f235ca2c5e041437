package main

import (
	"fmt"
	"log"

	"github.com/danielpatrickdp/speaking-coach/internal/config"
	"github.com/danielpatrickdp/speaking-coach/internal/oracle"
	"github.com/danielpatrickdp/speaking-coach/internal/report"
	"github.com/danielpatrickdp/speaking-coach/internal/store"
)

type loadFunc func() (*config.Config, error)

// buildOracle returns the configured backend behind a rate limiter and a
// verdict cache. The closer releases any connection the backend holds.
func buildOracle(cfg config.OracleConfig) (oracle.Oracle, func() error, error) {
	var (
		base   oracle.Oracle
		closer = func() error { return nil }
	)
	switch cfg.Backend {
	case config.BackendGRPC:
		remote, err := oracle.NewRemoteOracle(cfg.GRPCAddr)
		if err != nil {
			return nil, nil, err
		}
		base, closer = remote, remote.Close
	default:
		o, err := oracle.NewOpenAIOracle(oracle.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		base = o
	}

	var o oracle.Oracle = base
	if cfg.RatePerSecond > 0 {
		o = oracle.NewLimited(o, cfg.RatePerSecond, cfg.Burst)
	}
	if cfg.CacheSize > 0 {
		cached, err := oracle.NewCached(o, cfg.CacheSize)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("oracle cache: %w", err)
		}
		o = cached
	}
	log.Printf("[ORACLE] backend=%s rate=%.1f/s burst=%d cache=%d",
		cfg.Backend, cfg.RatePerSecond, cfg.Burst, cfg.CacheSize)
	return o, closer, nil
}

// openArchive opens the SQLite report archive, or returns nil when disabled.
func openArchive(cfg config.ReportsConfig) (*store.Store, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	return store.NewStore(cfg.DBPath)
}

// reportSinks writes JSON files and, when open, the archive.
func reportSinks(cfg config.ReportsConfig, archive *store.Store, extra ...report.Sink) report.Multi {
	sinks := report.Multi{report.FileEmitter{Dir: cfg.Dir}}
	if archive != nil {
		sinks = append(sinks, archive)
	}
	return append(sinks, extra...)
}
