package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/kgview/internal/config"
	"github.com/alfredjeanlab/kgview/internal/events"
	"github.com/alfredjeanlab/kgview/internal/export"
	"github.com/alfredjeanlab/kgview/internal/metrics"
	"github.com/alfredjeanlab/kgview/internal/presence"
	"github.com/alfredjeanlab/kgview/internal/server"
	"github.com/alfredjeanlab/kgview/internal/session"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the explorer server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.ListenAddr = addr
		}
		ctx := cmd.Context()
		m := metrics.New()
		hub := server.NewHub(logger)

		// Create event publisher.
		publishers := events.Multi{hub}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publishers = append(publishers, pub)
			logger.Info("events enabled", zap.String("nats_url", cfg.NATSURL))
		} else {
			logger.Info("events disabled (KGV_NATS_URL not set)")
		}
		defer func() {
			if err := publishers.Close(); err != nil {
				logger.Error("error closing publisher", zap.Error(err))
			}
		}()

		// Viewers confirm before sending destructive commands.
		sess, err := newSession(sessionOptions{
			surface:   hub.Surface(),
			publisher: publishers,
			metrics:   m,
			asker:     session.AlwaysConfirm,
		})
		if err != nil {
			return err
		}
		defer sess.Close()
		if err := sess.Start(ctx); err != nil {
			logger.Warn("failed to restore last graph", zap.Error(err))
		}

		tracker := presence.New(logger)
		tracker.StartReaper(nil)
		defer tracker.Stop()

		// Start the snapshot scheduler if any destination is configured.
		if cfg.Export.Enabled() {
			dests, err := buildDestinations(ctx, cfg.Export)
			if err != nil {
				return err
			}
			scheduler := export.NewScheduler(sess, dests, export.SchedulerOptions{
				Interval:  cfg.Export.Interval,
				Formats:   cfg.Export.Formats,
				Publisher: publishers,
				Metrics:   m,
				Logger:    logger.Named("export"),
			})
			scheduler.Start(ctx)
			defer scheduler.Stop()
			logger.Info("snapshot export started", zap.Duration("interval", cfg.Export.Interval))
		}

		srv := server.New(server.Config{
			Session:   sess,
			Hub:       hub,
			Presence:  tracker,
			Metrics:   m,
			AuthToken: cfg.AuthToken,
			Logger:    logger,
		})

		logger.Info("explorer server started",
			zap.String("addr", cfg.ListenAddr),
			zap.String("api_url", cfg.APIURL),
			zap.String("viewport", cfg.Viewport.String()))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(ctx, cfg.ListenAddr) })
		g.Go(func() error { return sess.Run(ctx, cfg.FrameInterval) })
		g.Go(func() error {
			if err := sess.WatchTheme(ctx); err != nil {
				logger.Warn("color scheme file not watched", zap.Error(err))
			}
			return nil
		})

		err = g.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		logger.Info("shutdown complete")
		return err
	},
}

// buildDestinations returns one destination per configured export target.
func buildDestinations(ctx context.Context, c config.Export) ([]export.Destination, error) {
	var dests []export.Destination
	if c.Dir != "" {
		dests = append(dests, export.NewDirDestination(c.Dir))
		logger.Info("export dir destination enabled", zap.String("dir", c.Dir))
	}
	if c.Bucket != "" {
		s3Dest, err := export.NewS3Destination(ctx, c.Bucket, c.Prefix, c.Region, c.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("creating S3 export destination: %w", err)
		}
		dests = append(dests, s3Dest)
		logger.Info("export S3 destination enabled", zap.String("bucket", c.Bucket), zap.String("prefix", c.Prefix))
	}
	if c.GitRepo != "" {
		dests = append(dests, export.NewGitDestination(c.GitRepo, c.GitBranch))
		logger.Info("export git destination enabled", zap.String("repo", c.GitRepo), zap.String("branch", c.GitBranch))
	}
	return dests, nil
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default from config, :8080)")
}
