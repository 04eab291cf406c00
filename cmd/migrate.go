package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arcstream/arcstream/config"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
)

// migrateCmd applies pending schema migrations (opening the database runs
// them) and reports the resulting version.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "run database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.New(viper.GetViper())
		if err != nil {
			log.Fatalf("failed to read configurations: %v", err)
		}

		store, err := sqlite.New(cfg.Storage.FilePath)
		if err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		defer store.Close()

		version, dirty, err := store.MigrationVersion()
		if err != nil {
			log.Fatalf("failed to read migration version: %v", err)
		}
		fmt.Printf("schema at version %d (dirty=%v)\n", version, dirty)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
