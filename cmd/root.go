package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "arcstream",
	Short: "arcstream media server",
	Long:  `arcstream scans media libraries, enriches them with metadata and serves adaptive streams.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
}

// initConfig sets viper configurations and default values
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetEnvPrefix("ARCSTREAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", ""))
	viper.AutomaticEnv()

	viper.SetDefault("tmdb.scheme", "https")
	viper.SetDefault("tmdb.host", "api.themoviedb.org")
	viper.SetDefault("tmdb.apikey", "")

	viper.SetDefault("storage.filePath", "arcstream.db")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("queue.leaseTTL", "2m")
	viper.SetDefault("queue.sweepInterval", "15s")
	viper.SetDefault("queue.retryBackoffBase", "5s")

	viper.SetDefault("transcode.cacheDir", "transcode-cache")
	viper.SetDefault("transcode.ffmpegPath", "ffmpeg")
	viper.SetDefault("transcode.ffprobePath", "ffprobe")
	viper.SetDefault("transcode.maxWorkers", 2)
	viper.SetDefault("transcode.segmentSeconds", 6)

	viper.SetDefault("imageCache.dir", "image-cache")
}
