package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

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
)

var (
	scanForce bool
	scanIdle  time.Duration
)

// scanCmd runs one library scan to completion without the HTTP surface: it
// enqueues the roots, runs the worker pool, and exits once the queue has
// been idle long enough.
var scanCmd = &cobra.Command{
	Use:   "scan <library-id>",
	Short: "scan a library and wait for the pipeline to drain",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.New(viper.GetViper())
		if err != nil {
			log.Fatalf("failed to read configurations: %v", err)
		}

		libraryID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("invalid library id: %v", err)
		}

		baseLogger := logger.Get()
		ctx, cancel := context.WithCancel(logger.WithCtx(context.Background(), baseLogger))
		defer cancel()

		store, err := sqlite.New(cfg.Storage.FilePath)
		if err != nil {
			log.Fatalf("failed to open storage: %v", err)
		}
		defer store.Close()

		lib, err := store.GetLibrary(ctx, libraryID)
		if err != nil {
			log.Fatalf("failed to load library %d: %v", libraryID, err)
		}

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

		q := queue.NewService(store, bus, correlation.NewCache(correlation.DefaultCapacity), queue.DefaultConfig())
		q.StartSweeper(ctx)

		prober := ffmpeg.NewFFprobe(cfg.Transcode.FFprobePath)
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

		// count completions to decide when the pipeline has drained
		jobEvents, err := bus.Subscribe(ctx, events.TopicJobs)
		if err != nil {
			log.Fatalf("failed to subscribe: %v", err)
		}

		scanID, handles, err := orchestrator.StartScan(ctx, lib, scanner.ReasonUserRequested, scanForce)
		if err != nil {
			log.Fatalf("failed to start scan: %v", err)
		}
		fmt.Printf("scan %s started with %d root jobs\n", scanID, len(handles))

		completed, failed := 0, 0
		idle := time.NewTimer(scanIdle)
		for {
			select {
			case ev := <-jobEvents:
				switch ev.Type {
				case events.TypeJobCompleted:
					completed++
				case events.TypeJobDeadLettered:
					failed++
				default:
					continue
				}
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(scanIdle)
			case <-idle.C:
				fmt.Printf("scan drained: %d jobs completed, %d dead-lettered\n", completed, failed)
				return
			}
		}
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "ignore scan cursors")
	scanCmd.Flags().DurationVar(&scanIdle, "idle", 10*time.Second, "exit after the queue stays idle this long")
	rootCmd.AddCommand(scanCmd)
}
