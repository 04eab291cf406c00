package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestNew(t *testing.T) {
	t.Run("success with file", func(t *testing.T) {
		cu := viper.New()
		cu.SetConfigFile("./testing/config.yaml")
		c, err := New(cu)
		if err != nil {
			t.Errorf("TestNew() err = %v, want %v", err, nil)
		}

		wantConfig := Config{
			TMDB: TMDB{
				Scheme: "https",
				Host:   "my-host",
				APIKey: "my-api-key",
			},
			Storage: Storage{
				FilePath: "/data/arcstream.db",
			},
			Transcode: Transcode{
				CacheDir:   "/data/transcode",
				MaxWorkers: 2,
			},
			Queue: Queue{
				LeaseTTL:      2 * time.Minute,
				SweepInterval: 15 * time.Second,
			},
		}

		if !reflect.DeepEqual(c, wantConfig) {
			t.Errorf("TestNew() config = %+v, want %+v", c, wantConfig)
		}
	})

	t.Run("success without file", func(t *testing.T) {
		cu := viper.New()
		cu.SetConfigFile("")
		cu.SetDefault("tmdb.scheme", "https")
		cu.SetDefault("tmdb.host", "api.themoviedb.org")
		cu.SetDefault("tmdb.apiKey", "fake-key")
		cu.SetDefault("server.port", 8080)
		c, err := New(cu)
		if err != nil {
			t.Errorf("TestNew() err = %v, want %v", err, nil)
		}

		wantConfig := Config{
			TMDB: TMDB{
				Scheme: "https",
				Host:   "api.themoviedb.org",
				APIKey: "fake-key",
			},
			Server: Server{
				Port: 8080,
			},
		}

		if !reflect.DeepEqual(c, wantConfig) {
			t.Errorf("TestNew() config = %+v, want %+v", c, wantConfig)
		}
	})
}
