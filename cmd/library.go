package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arcstream/arcstream/config"
	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "manage libraries",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "list configured libraries",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		libs, err := store.ListLibraries(context.Background())
		if err != nil {
			log.Fatalf("failed to list libraries: %v", err)
		}
		for _, lib := range libs {
			state := "enabled"
			if !lib.Enabled {
				state = "disabled"
			}
			fmt.Printf("%d\t%s\t%s\t%s\t%v\n", lib.ID, lib.Name, lib.Kind, state, lib.Paths)
		}
	},
}

var (
	libraryAddKind  string
	libraryAddPaths []string
)

var libraryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "add a library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		id, err := store.CreateLibrary(context.Background(), domain.Library{
			Name:                args[0],
			Kind:                domain.LibraryKind(libraryAddKind),
			Paths:               libraryAddPaths,
			ScanIntervalMinutes: 60,
			Enabled:             true,
		})
		if err != nil {
			log.Fatalf("failed to create library: %v", err)
		}
		fmt.Printf("created library %d\n", id)
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "remove a library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("invalid library id: %v", err)
		}
		if err := store.DeleteLibrary(context.Background(), id); err != nil {
			log.Fatalf("failed to delete library: %v", err)
		}
		fmt.Printf("deleted library %d\n", id)
	},
}

func openStore() *sqlite.SQLite {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		log.Fatalf("failed to read configurations: %v", err)
	}
	store, err := sqlite.New(cfg.Storage.FilePath)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	return store
}

func init() {
	libraryAddCmd.Flags().StringVar(&libraryAddKind, "kind", "movies", "library kind (movies or series)")
	libraryAddCmd.Flags().StringSliceVar(&libraryAddPaths, "path", nil, "library root path (repeatable)")
	libraryAddCmd.MarkFlagRequired("path")

	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryAddCmd)
	libraryCmd.AddCommand(libraryRemoveCmd)
	rootCmd.AddCommand(libraryCmd)
}
