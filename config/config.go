package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	TMDB       TMDB       `json:"tmdb" yaml:"tmdb" mapstructure:"tmdb"`
	Storage    Storage    `json:"storage" yaml:"storage" mapstructure:"storage"`
	Server     Server     `json:"server" yaml:"server" mapstructure:"server"`
	Queue      Queue      `json:"queue" yaml:"queue" mapstructure:"queue"`
	Transcode  Transcode  `json:"transcode" yaml:"transcode" mapstructure:"transcode"`
	ImageCache ImageCache `json:"imageCache" yaml:"imageCache" mapstructure:"imageCache"`
}

type TMDB struct {
	Scheme string `json:"scheme" yaml:"scheme" mapstructure:"scheme"`
	Host   string `json:"host" yaml:"host" mapstructure:"host"`
	APIKey string `json:"apiKey" yaml:"apiKey" mapstructure:"apiKey"`
}

type Server struct {
	Port int `json:"port" yaml:"port" mapstructure:"port"`
}

// Storage configuration is assumed to be for sqlite database only currently
type Storage struct {
	FilePath string `json:"filePath" yaml:"filePath" mapstructure:"filePath"`
}

// Queue tunes the job queue's lease and retry behavior.
type Queue struct {
	LeaseTTL         time.Duration `json:"leaseTTL" yaml:"leaseTTL" mapstructure:"leaseTTL"`
	SweepInterval    time.Duration `json:"sweepInterval" yaml:"sweepInterval" mapstructure:"sweepInterval"`
	RetryBackoffBase time.Duration `json:"retryBackoffBase" yaml:"retryBackoffBase" mapstructure:"retryBackoffBase"`
}

// Transcode tunes the encoding engine.
type Transcode struct {
	CacheDir       string `json:"cacheDir" yaml:"cacheDir" mapstructure:"cacheDir"`
	FFmpegPath     string `json:"ffmpegPath" yaml:"ffmpegPath" mapstructure:"ffmpegPath"`
	FFprobePath    string `json:"ffprobePath" yaml:"ffprobePath" mapstructure:"ffprobePath"`
	RenderNode     string `json:"renderNode" yaml:"renderNode" mapstructure:"renderNode"`
	MaxWorkers     int64  `json:"maxWorkers" yaml:"maxWorkers" mapstructure:"maxWorkers"`
	SegmentSeconds int    `json:"segmentSeconds" yaml:"segmentSeconds" mapstructure:"segmentSeconds"`
}

// ImageCache locates the artwork blob cache.
type ImageCache struct {
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

type ConfigUnmarshaler interface {
	ReadInConfig() error
	Unmarshal(any, ...viper.DecoderConfigOption) error
	ConfigFileUsed() string
}

// New reads a new configuration
func New(cu ConfigUnmarshaler) (Config, error) {
	var c Config

	if cu.ConfigFileUsed() != "" {
		err := cu.ReadInConfig()
		if err != nil {
			return c, err
		}
	}

	err := cu.Unmarshal(&c)
	return c, err
}
