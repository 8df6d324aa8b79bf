package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var accessionCmd = &cobra.Command{
	Use:   "accession ACCESSION",
	Short: "Map between OSD and GLDS accessions",
	Long: `Print the OSD accession and the GLDS accessions recorded for an OSD or
GLDS accession.`,
	Example: `  runsheet accession OSD-48
  runsheet accession GLDS-168`,
	Args: cobra.ExactArgs(1),
	RunE: runAccession,
}

func runAccession(cmd *cobra.Command, args []string) error {
	resolver, closeResolver, err := newResolver()
	if err != nil {
		return err
	}
	defer closeResolver()

	osd, glds, err := resolver.AccessionMapping(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", colorize(colorBold, "OSD: "), osd)
	if len(glds) == 0 {
		fmt.Printf("%s %s\n", colorize(colorBold, "GLDS:"), colorize(colorGray, "none"))
		return nil
	}
	fmt.Printf("%s %s\n", colorize(colorBold, "GLDS:"), strings.Join(glds, ", "))
	return nil
}
