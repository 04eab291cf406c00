package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arcstream/arcstream/config"
	"github.com/arcstream/arcstream/internal/correlation"
	"github.com/arcstream/arcstream/internal/dispatch"
	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/ffmpeg"
	"github.com/arcstream/arcstream/internal/imagecache"
	"github.com/arcstream/arcstream/internal/imagefetch"
	"github.com/arcstream/arcstream/internal/indexer"
	arcio "github.com/arcstream/arcstream/internal/io"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/metadata"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
	"github.com/arcstream/arcstream/internal/tmdb"
	"github.com/arcstream/arcstream/internal/transcode"
	"github.com/arcstream/arcstream/server"
)

// serveCmd runs the full stack: pipeline workers, queue sweeper,
// orchestrator and the HTTP surface.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the media server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.New(viper.GetViper())
		if err != nil {
			log.Fatalf("failed to read configurations: %v", err)
		}

		baseLogger := logger.Get()
		ctx, cancel := context.WithCancel(logger.WithCtx(context.Background(), baseLogger))
		defer cancel()

		store, err := sqlite.New(cfg.Storage.FilePath)
		if err != nil {
			log.Fatalf("failed to open storage: %v", err)
		}
		defer store.Close()

		images, err := imagecache.New(cfg.ImageCache.Dir)
		if err != nil {
			log.Fatalf("failed to open image cache: %v", err)
		}

		tmdbClient, err := tmdb.New(cfg.TMDB.Scheme, cfg.TMDB.Host, cfg.TMDB.APIKey)
		if err != nil {
			log.Fatalf("failed to create tmdb client: %v", err)
		}

		bus := events.NewBus(256)
		defer bus.Close()

		queueCfg := queue.DefaultConfig()
		if cfg.Queue.LeaseTTL > 0 {
			queueCfg.DefaultLeaseTTL = cfg.Queue.LeaseTTL
		}
		if cfg.Queue.SweepInterval > 0 {
			queueCfg.SweepInterval = cfg.Queue.SweepInterval
		}
		if cfg.Queue.RetryBackoffBase > 0 {
			queueCfg.RetryBackoffBase = cfg.Queue.RetryBackoffBase
		}
		q := queue.NewService(store, bus, correlation.NewCache(correlation.DefaultCapacity), queueCfg)
		q.StartSweeper(ctx)

		prober := ffmpeg.NewFFprobe(cfg.Transcode.FFprobePath)
		transcoder := transcode.NewService(
			transcode.Config{
				CacheDir:       cfg.Transcode.CacheDir,
				FFmpegBin:      cfg.Transcode.FFmpegPath,
				FFprobeBin:     cfg.Transcode.FFprobePath,
				RenderNode:     cfg.Transcode.RenderNode,
				MaxWorkers:     cfg.Transcode.MaxWorkers,
				SegmentSeconds: cfg.Transcode.SegmentSeconds,
			},
			prober,
			transcode.NewDetector(cfg.Transcode.FFmpegPath),
			transcode.NewFFmpegRunner(cfg.Transcode.FFmpegPath),
			store,
		)

		dispatcher := dispatch.New(
			scanner.NewFolderActor(&arcio.MediaFileSystem{}, store, store),
			scanner.NewAnalyzeActor(prober, store),
			metadata.NewActor(tmdbClient, store, store),
			indexer.NewActor(store),
			imagefetch.NewActor(store, images, tmdbClient),
			q,
			bus,
			store,
		)

		orchestrator := dispatch.NewOrchestrator(q, bus)
		if err := orchestrator.Run(ctx, store.GetLibrary); err != nil {
			log.Fatalf("failed to start orchestrator: %v", err)
		}

		dispatch.NewPool(q, dispatcher, dispatch.DefaultPoolConfig()).Start(ctx)

		srv := server.New(baseLogger, store, q, orchestrator, transcoder, images, bus, store, cfg.Server)
		if err := srv.Serve(cfg.Server.Port); err != nil {
			log.Fatalf("server exited: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
