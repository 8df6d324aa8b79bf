package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nishad/runsheet/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect assay profiles",
	Long: `Inspect the packaged profiles and any user profiles found in the
configured profiles directory.`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles and versions",
	RunE:  runProfilesList,
}

var profilesShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show the rules of a profile",
	Example: `  runsheet profiles show bulkRNASeq
  runsheet profiles show amplicon --version 2
  runsheet profiles show --file custom.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfilesShow,
}

var (
	profilesVersion string
	profilesFile    string
)

func init() {
	profilesShowCmd.Flags().StringVar(&profilesVersion, "version", "", "Profile version (default: latest)")
	profilesShowCmd.Flags().StringVar(&profilesFile, "file", "", "Show a custom profile YAML instead")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	provider := profiles()
	versioned := map[string][]string{}
	for _, p := range flatten(provider) {
		fs, ok := p.(*profile.FSProvider)
		if !ok {
			continue
		}
		for _, n := range fs.Names() {
			if _, seen := versioned[n]; !seen {
				versioned[n] = fs.Versions(n)
			}
		}
	}

	names := provider.Names()
	sort.Strings(names)
	printInfo("Profiles")
	printRule()
	for _, n := range names {
		fmt.Printf("  %-14s %s\n", colorize(colorBold, n), strings.Join(versioned[n], ", "))
	}
	return nil
}

func flatten(p profile.Provider) []profile.Provider {
	if chain, ok := p.(profile.Chain); ok {
		var out []profile.Provider
		for _, c := range chain {
			out = append(out, flatten(c)...)
		}
		return out
	}
	return []profile.Provider{p}
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	var (
		prof *profile.Profile
		err  error
	)
	switch {
	case profilesFile != "":
		prof, err = profile.FileProvider{Path: profilesFile}.Profile("", "")
	case len(args) == 1:
		prof, err = profiles().Profile(args[0], profilesVersion)
	default:
		return fmt.Errorf("a profile name or --file is required")
	}
	if err != nil {
		return err
	}

	printInfo("Profile %s", prof.ID())
	printRule()
	fmt.Printf("%s\n", colorize(colorBold, "Assay types:"))
	for _, t := range prof.AssayTypes {
		fmt.Printf("  %s\n", t)
	}
	fmt.Printf("\n%s\n", colorize(colorBold, "Options:"))
	fmt.Printf("  naming column:        %q\n", prof.Options.NamingColumn)
	fmt.Printf("  derive groups:        %t\n", prof.Options.DeriveGroups)
	fmt.Printf("  assert factor values: %t\n", prof.Options.AssertFactorValues)

	fmt.Printf("\n%s\n", colorize(colorBold, "Rules:"))
	for _, r := range prof.Rules {
		m := r.Meta()
		sources := make([]string, len(m.Sources))
		for i, s := range m.Sources {
			sources[i] = string(s)
		}
		line := fmt.Sprintf("  %2d %-13s %-20s -> %s",
			m.Position, r.Kind(), strings.Join(sources, ","), strings.Join(profile.Columns(r), ", "))
		if !m.Autoload {
			line += colorize(colorGray, " (not autoloaded)")
		}
		fmt.Println(line)
	}
	if prof.Schema != nil {
		fmt.Printf("\n%s %d column(s)\n", colorize(colorBold, "Embedded schema:"), len(prof.Schema.Columns))
	}
	return nil
}
