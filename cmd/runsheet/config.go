package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nishad/runsheet/internal/config"
	"github.com/nishad/runsheet/internal/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage runsheet configuration",
	Long:  `Manage runsheet configuration including output sink, OSDR endpoints and paths.`,
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show all active paths",
	RunE:  runConfigPaths,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration",
	Long: `Create a default configuration file at ~/.config/runsheet/config.yaml.
If a config file already exists, use --force to overwrite it.`,
	RunE: runConfigInit,
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing configuration")

	configCmd.AddCommand(configPathsCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigPaths(cmd *cobra.Command, args []string) error {
	p := paths.GetPaths()

	printInfo("Runsheet Paths")
	printRule()
	fmt.Printf("  Config:   %s\n", colorize(colorCyan, p.ConfigDir))
	fmt.Printf("  Data:     %s\n", colorize(colorCyan, p.DataDir))
	fmt.Printf("  Cache:    %s\n", colorize(colorCyan, p.CacheDir))
	fmt.Printf("  Profiles: %s\n", colorize(colorCyan, cfg.Conversion.ProfilesDirectory))
	fmt.Printf("  Listings: %s\n", colorize(colorCyan, cfg.OSDR.Cache.Path))

	for _, name := range []string{"RUNSHEET_CONFIG", "RUNSHEET_CONFIG_HOME", "RUNSHEET_CACHE_HOME", "RUNSHEET_FILE_CACHE"} {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("  %s = %s\n", colorize(colorYellow, name), val)
		}
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	printInfo("Configuration")
	printRule()
	fmt.Printf("%s %s\n", colorize(colorBold, "Config File:"), configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println(colorize(colorYellow, "  (using defaults - no config file found)"))
	}
	fmt.Println()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if strings.HasSuffix(line, ":") && !strings.HasPrefix(line, " ") {
			fmt.Println(colorize(colorBold, line))
			continue
		}
		if key, val, ok := strings.Cut(line, ": "); ok {
			fmt.Printf("%s: %s\n", colorize(colorCyan, key), colorize(colorGreen, val))
			continue
		}
		fmt.Println(line)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(paths.GetPaths().ConfigDir, "config.yaml")
	if _, err := os.Stat(path); err == nil && !configForce {
		printWarning("Configuration already exists at %s", path)
		fmt.Println("Use --force to overwrite")
		return nil
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	printSuccess("Configuration created at %s", path)
	return nil
}
