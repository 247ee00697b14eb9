// Package cmd provides command-line interface for asset extraction.
// This file contains the extract command, which loads any mix of supported
// inputs into one virtual file system and writes it out.
package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hansbonini/discrip/pkg"
)

// extractCmd loads every input set and exports the merged result.
var extractCmd = &cobra.Command{
	Use:   "extract [inputs...] [output_directory]",
	Short: "Extract every file from WAD, cabinet, ISO, CUE/BIN and ZIP inputs",
	Long: `Extract every file from one or more game inputs.

Inputs are grouped by extension:
  .wad            WAD container
  .hdr + .cab     InstallShield cabinet header and its volumes, in name order
  .iso            ISO9660 image; data1.hdr/data1.cab inside are expanded
  .cue + .bin     CUE sheet and BIN image; audio tracks become trackNN.wav
  .zip            ZIP archive

After loading, every file matching wad_pattern (or starting with "WWAD") is
expanded as an embedded WAD. Inputs given later win when two produce the same
file name. A failing input is reported but does not stop the others.

Output:
  - Every file below the output directory, keeping its path
  - manifest.yaml listing name, size and SHA-256 of every file

Examples:
  discrip extract game.iso ./output/
  discrip extract base.wad patch.zip ./output/
  discrip extract --list game.cue game.bin`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := cmd.Flags().GetBool("list")
		if err != nil {
			return fmt.Errorf("error getting list flag: %w", err)
		}

		inputs, outputDir := args, ""
		if !list {
			if len(args) < 2 {
				return fmt.Errorf("expected at least one input and an output directory")
			}
			inputs, outputDir = args[:len(args)-1], args[len(args)-1]
		}

		sets, err := pkg.DetectInputs(inputs)
		if err != nil {
			return err
		}
		loader, err := pkg.NewAssetLoader(pkg.NewOsSource(""), cfg)
		if err != nil {
			return err
		}

		for _, set := range sets {
			fmt.Printf("Loading %s input: %s\n", set.Kind, set.Primary)
		}
		session, loadErr := loader.Load(sets)
		if loadErr != nil && session.FS.Len() == 0 {
			return fmt.Errorf("failed to load inputs: %w", loadErr)
		}

		if list {
			for _, f := range session.FS.List() {
				fmt.Printf("%10d  %s\n", f.Size(), f.Name)
			}
		} else {
			m, err := pkg.NewExporter(afero.NewOsFs()).ExportFileSystem(session, outputDir)
			if err != nil {
				return fmt.Errorf("failed to export files: %w", err)
			}
			fmt.Printf("Extracted %d files (%d bytes) to: %s\n", m.TotalFiles, m.TotalBytes, outputDir)
		}
		if session.ConfigFile != nil {
			fmt.Printf("Configuration file: %s\n", session.ConfigFile.Name)
		}

		if loadErr != nil {
			return fmt.Errorf("some inputs failed: %w", loadErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	verboseFlag(extractCmd)
	extractCmd.Flags().BoolP("list", "l", false, "List the loaded files instead of writing them")
}
