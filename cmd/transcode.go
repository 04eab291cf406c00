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
	"github.com/arcstream/arcstream/internal/ffmpeg"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
	"github.com/arcstream/arcstream/internal/transcode"
)

var transcodeProfile string

// transcodeCmd runs one encode from the command line, mostly useful for
// checking hardware detection and filter graphs against a real file.
var transcodeCmd = &cobra.Command{
	Use:   "transcode <media-id>",
	Short: "transcode one media file and wait for completion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.New(viper.GetViper())
		if err != nil {
			log.Fatalf("failed to read configurations: %v", err)
		}

		mediaID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("invalid media id: %v", err)
		}

		ctx := logger.WithCtx(context.Background(), logger.Get())

		store, err := sqlite.New(cfg.Storage.FilePath)
		if err != nil {
			log.Fatalf("failed to open storage: %v", err)
		}
		defer store.Close()

		svc := transcode.NewService(
			transcode.Config{
				CacheDir:       cfg.Transcode.CacheDir,
				FFmpegBin:      cfg.Transcode.FFmpegPath,
				FFprobeBin:     cfg.Transcode.FFprobePath,
				RenderNode:     cfg.Transcode.RenderNode,
				MaxWorkers:     cfg.Transcode.MaxWorkers,
				SegmentSeconds: cfg.Transcode.SegmentSeconds,
			},
			ffmpeg.NewFFprobe(cfg.Transcode.FFprobePath),
			transcode.NewDetector(cfg.Transcode.FFmpegPath),
			transcode.NewFFmpegRunner(cfg.Transcode.FFmpegPath),
			store,
		)

		job, err := svc.StartTranscoding(ctx, mediaID, transcodeProfile)
		if err != nil {
			log.Fatalf("failed to start transcoding: %v", err)
		}
		fmt.Printf("job %s started (%s, hdr=%v)\n", job.ID, job.Variant.Name, job.IsHDR)

		for {
			time.Sleep(time.Second)
			job, err := svc.JobStatus(job.ID)
			if err != nil {
				log.Fatalf("job vanished: %v", err)
			}
			switch job.Status {
			case transcode.StatusCompleted:
				fmt.Println("completed")
				return
			case transcode.StatusFailed:
				log.Fatalf("failed: %s", job.Error)
			case transcode.StatusCancelled:
				fmt.Println("cancelled")
				return
			default:
				fmt.Printf("\r%s %.1f%% (eta %s)", job.Status, job.Progress.Ratio*100, job.Progress.ETA.Round(time.Second))
			}
		}
	},
}

func init() {
	transcodeCmd.Flags().StringVar(&transcodeProfile, "profile", "1080p", "quality profile")
	rootCmd.AddCommand(transcodeCmd)
}
