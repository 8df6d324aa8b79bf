package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Look up remote data files of an accession",
}

var filesListCmd = &cobra.Command{
	Use:   "list ACCESSION",
	Short: "List all files of an accession",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printMatches(cmd, args[0], ".*")
	},
}

var filesMatchCmd = &cobra.Command{
	Use:   "match ACCESSION PATTERN",
	Short: "List files whose names match a regular expression",
	Example: `  runsheet files match OSD-194 "_R1_raw\.fastq\.gz$"
  runsheet files match GLDS-194 "ISA\.zip$"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printMatches(cmd, args[0], args[1])
	},
}

var filesURLCmd = &cobra.Command{
	Use:   "url ACCESSION FILENAME",
	Short: "Print the download URL of a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilesURL,
}

func init() {
	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesMatchCmd)
	filesCmd.AddCommand(filesURLCmd)
}

func printMatches(cmd *cobra.Command, accession, pattern string) error {
	resolver, closeResolver, err := newResolver()
	if err != nil {
		return err
	}
	defer closeResolver()

	names, err := resolver.FindMatchingFilenames(cmd.Context(), accession, pattern)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	if verbose {
		printInfo("%d file(s) of %s match %q", len(names), accession, pattern)
	}
	return nil
}

func runFilesURL(cmd *cobra.Command, args []string) error {
	resolver, closeResolver, err := newResolver()
	if err != nil {
		return err
	}
	defer closeResolver()

	url, err := resolver.ResolveFileURL(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
