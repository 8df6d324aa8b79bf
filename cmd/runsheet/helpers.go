package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/osdr"
	"github.com/nishad/runsheet/internal/profile"
)

// Color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Check if output is to terminal
func isTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Apply color if terminal output and color enabled
func colorize(color, text string) string {
	if !noColor && isTerminal() && os.Getenv("NO_COLOR") == "" {
		return color + text + colorReset
	}
	return text
}

// Print error message in user-friendly format
func printError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(colorRed, "✗"), msg)
}

// Print success message
func printSuccess(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Printf("%s %s\n", colorize(colorGreen, "✓"), msg)
	}
}

// Print info message
func printInfo(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Printf("%s\n", colorize(colorCyan, msg))
	}
}

// Print warning message
func printWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(colorYellow, "⚠"), msg)
}

func printRule() {
	if !quiet {
		fmt.Println(colorize(colorGray, "────────────────────────────────────────"))
	}
}

// profiles returns user profiles, if any, ahead of the packaged ones.
func profiles() profile.Provider {
	packaged := profile.Packaged()
	dir := cfg.Conversion.ProfilesDirectory
	if dir == "" {
		return packaged
	}
	if _, err := os.Stat(dir); err != nil {
		return packaged
	}
	user, err := profile.Directory(dir)
	if err != nil {
		logger.Warn("ignoring profile directory", zap.String("dir", dir), zap.Error(err))
		return packaged
	}
	return profile.Chain{user, packaged}
}

// newResolver wires the OSDR client, the listing store and the resolver.
// The returned func closes the store.
func newResolver() (*osdr.Resolver, func(), error) {
	copts := osdr.OptionsFromConfig(cfg.OSDR)
	copts.Logger = logger.Named("osdr")
	client := osdr.NewClient(copts)
	opts := osdr.ResolverOptions{
		TTL:    time.Duration(cfg.OSDR.Cache.TTL) * time.Second,
		Logger: logger.Named("osdr"),
	}
	closeFn := func() {}
	if cfg.OSDR.Cache.Enabled && cfg.OSDR.Cache.Path != "" {
		store, err := osdr.OpenStore(cfg.OSDR.Cache.Path)
		if err != nil {
			return nil, nil, err
		}
		opts.Store = store
		closeFn = func() { store.Close() }
	}
	return osdr.NewResolver(client, opts), closeFn, nil
}
