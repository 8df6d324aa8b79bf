package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nishad/runsheet/internal/osdr"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the OSDR file listing cache",
	Long: `File listings fetched from OSDR are kept in a local SQLite database so
repeated conversions of the same accession do not hit the API again.`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache information",
	RunE:  runCacheInfo,
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached file listings",
	Example: `  # Remove listings older than the configured TTL
  runsheet cache clean

  # Remove everything
  runsheet cache clean --all`,
	RunE: runCacheClean,
}

var cleanAll bool

func init() {
	cacheCleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all cached listings")

	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}

func openCache() (*osdr.Store, error) {
	path := cfg.OSDR.Cache.Path
	if path == "" {
		return nil, fmt.Errorf("no cache path configured")
	}
	return osdr.OpenStore(path)
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	path := cfg.OSDR.Cache.Path
	printInfo("File listing cache")
	printRule()
	fmt.Printf("  Path:    %s\n", colorize(colorCyan, path))
	fmt.Printf("  Enabled: %t\n", cfg.OSDR.Cache.Enabled)
	fmt.Printf("  TTL:     %s\n", time.Duration(cfg.OSDR.Cache.TTL)*time.Second)

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  Status:  %s\n", colorize(colorGray, "not created"))
		return nil
	}
	store, err := openCache()
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("  Entries: %d\n", n)
	fmt.Printf("  Size:    %.1f KB\n", float64(info.Size())/1024)
	return nil
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	store, err := openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	ttl := time.Duration(cfg.OSDR.Cache.TTL) * time.Second
	if cleanAll {
		ttl = -time.Second // cutoff after now
	}
	n, err := store.Purge(cmd.Context(), ttl)
	if err != nil {
		return err
	}
	printSuccess("Removed %d cached listing(s)", n)
	return nil
}
