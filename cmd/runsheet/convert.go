package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nishad/runsheet/internal/convert"
	"github.com/nishad/runsheet/internal/extract"
	"github.com/nishad/runsheet/internal/ui"
	"github.com/nishad/runsheet/internal/writer"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert an ISA-Tab archive into runsheets",
	Long: `Convert an ISA-Tab archive into one runsheet per assay table whose
measurement and technology types are accepted by the profile.

When --isa-archive is omitted the archive is downloaded from OSDR. Read file
names are mapped to download URLs through the OSDR file listing of the
accession.`,
	Example: `  runsheet convert --accession OSD-194 --isa-archive OSD-194-ISA.zip --profile bulkRNASeq
  runsheet convert --accession OSD-48 --profile amplicon --version 2
  runsheet convert --accession OSD-1 --isa-archive isa.zip --config-file custom.yaml
  runsheet convert --accession OSD-194 --profile bulkRNASeq --inject organism="Mus musculus"`,
	RunE: runConvert,
}

var (
	convertAccession   string
	convertArchive     string
	convertProfile     string
	convertVersion     string
	convertProfileFile string
	convertInject      []string
	convertOutputDir   string
	convertNoAssert    bool
	convertJSON        bool
)

func init() {
	convertCmd.Flags().StringVarP(&convertAccession, "accession", "a", "", "OSD or GLDS accession (required)")
	convertCmd.Flags().StringVar(&convertArchive, "isa-archive", "", "Local ISA archive (default: download from OSDR)")
	convertCmd.Flags().StringVarP(&convertProfile, "profile", "p", "", "Packaged or user profile name")
	convertCmd.Flags().StringVar(&convertVersion, "version", "", "Profile version (default: latest)")
	convertCmd.Flags().StringVar(&convertProfileFile, "config-file", "", "Custom profile YAML, overrides --profile")
	convertCmd.Flags().StringArrayVar(&convertInject, "inject", nil, "Set a column for every row, as Column_Name=Value (repeatable)")
	convertCmd.Flags().StringVarP(&convertOutputDir, "output-dir", "o", "", "Write runsheets here (default: configured sink)")
	convertCmd.Flags().BoolVar(&convertNoAssert, "no-assert-factor-values", false, "Allow runsheets without Factor Value columns")
	convertCmd.Flags().BoolVar(&convertJSON, "json", false, "Print the result as JSON")
	convertCmd.MarkFlagRequired("accession")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if convertProfile == "" && convertProfileFile == "" {
		return fmt.Errorf("either --profile or --config-file is required")
	}
	injections, err := extract.ParseInjections(convertInject)
	if err != nil {
		return err
	}

	resolver, closeResolver, err := newResolver()
	if err != nil {
		return fmt.Errorf("failed to open file cache: %w", err)
	}
	defer closeResolver()

	archive := convertArchive
	if archive == "" {
		dir, err := os.MkdirTemp("", "runsheet-isa-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		fetch := func() (err error) {
			archive, err = resolver.FetchISA(ctx, convertAccession, dir)
			return err
		}
		if quiet {
			err = fetch()
		} else {
			err = ui.Run(ui.NewSpinner("Downloading ISA archive for "+convertAccession), fetch)
		}
		if err != nil {
			return err
		}
	}

	sink, err := outputSink(ctx)
	if err != nil {
		return err
	}

	req := convert.Request{
		Accession:      convertAccession,
		ArchivePath:    archive,
		Profile:        convertProfile,
		ProfileVersion: convertVersion,
		ProfileFile:    convertProfileFile,
		Injections:     injections,
	}
	assert := cfg.Conversion.AssertFactorValues && !convertNoAssert
	if !assert {
		req.AssertFactorValues = &assert
	}
	if req.ProfileVersion == "" && cfg.Conversion.ConfigVersion != "" {
		req.ProfileVersion = cfg.Conversion.ConfigVersion
	}

	res, err := convert.Run(ctx, req, convert.Deps{
		Profiles: profiles(),
		Resolver: resolver,
		Sink:     sink,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if convertJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printConvertResult(res)
	return nil
}

func outputSink(ctx context.Context) (writer.Sink, error) {
	if convertOutputDir != "" {
		return writer.NewLocalSink(convertOutputDir), nil
	}
	return writer.Open(ctx, cfg.Output)
}

func printConvertResult(res *convert.Result) {
	printInfo("Conversion of %s with %s", res.Accession, res.Profile)
	printRule()
	for _, rs := range res.Runsheets {
		printSuccess("%s (%d samples, %d columns) from %s", rs.FileName, rs.Rows, len(rs.Columns), rs.AssayFile)
		if verbose && rs.Location != "" {
			fmt.Printf("  %s\n", colorize(colorGray, rs.Location))
		}
	}
	for _, w := range res.Warnings {
		printWarning("%s", w)
	}
	if !quiet {
		fmt.Printf("\n%s %d runsheet(s), %d warning(s) in %s\n",
			colorize(colorBold, "Done:"), len(res.Runsheets), len(res.Warnings), res.Duration.Round(1e6))
	}
}
