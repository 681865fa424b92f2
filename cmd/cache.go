package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/framewell/fwb/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local storage backend",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show stored bundle count and size",
	RunE:         runCacheStats,
	SilenceUsage: true,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove all stored bundles",
	RunE:         runCacheClear,
	SilenceUsage: true,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openLocalStorage() (*cache.LocalStorage, error) {
	return cache.NewLocalStorage(viper.GetString("storage.local_dir"))
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	storage, err := openLocalStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	count, size, err := storage.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Bundles: %d\nSize: %.1f MiB\n", count, float64(size)/(1024*1024))

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	storage, err := openLocalStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	if err := storage.Clear(); err != nil {
		return err
	}

	fmt.Println("Cache cleared")

	return nil
}
