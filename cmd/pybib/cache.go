package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the ADS lookup cache",
	Long: `Manage the SQLite cache of ADS search and export results.

The cache lives at cache_path from the config file, or under XDG_CACHE_HOME.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached lookup",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and size",
	Args:  cobra.NoArgs,
	RunE:  runCacheInfo,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c := mustOpenCache()
	defer c.Close()

	if err := c.Clear(); err != nil {
		exitWithError(ExitError, "clearing cache: %v", err)
	}

	path := cfg.CacheFilePath()
	if humanOutput {
		fmt.Printf("Cleared %s\n", path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "cleared", Path: path})
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	c := mustOpenCache()
	defer c.Close()

	stats, err := c.Stats()
	if err != nil {
		exitWithError(ExitError, "reading cache: %v", err)
	}

	info := CacheInfoResponse{
		Path:    cfg.CacheFilePath(),
		Lookups: stats.Lookups,
		Entries: stats.Entries,
	}
	if fi, err := os.Stat(info.Path); err == nil {
		info.Size = fi.Size()
	}

	if humanOutput {
		fmt.Printf("Cache: %s (%s)\n", info.Path, formatBytes(info.Size))
		fmt.Printf("Lookups: %d\n", info.Lookups)
		fmt.Printf("Entries: %d\n", info.Entries)
		return nil
	}
	return outputJSON(info)
}
