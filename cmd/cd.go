// Package cmd provides command-line interface for CD image processing.
// This file contains commands for dumping the data and audio tracks of
// CUE/BIN disc images.
package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hansbonini/discrip/pkg"
	"github.com/hansbonini/discrip/pkg/common"
)

// cdCmd represents the parent command for all CD image operations.
// It provides access to the dump subcommand for CUE/BIN discs.
var cdCmd = &cobra.Command{
	Use:   "cd",
	Short: "Process CUE/BIN CD images",
	Long: `Process CUE/BIN CD images of PC game discs.

Commands:
  dump      Extract the data track files and audio tracks

Examples:
  discrip cd dump game.cue ./output/`,
}

// cdDumpCmd extracts files from CD image files.
// It splits the BIN along the CUE sheet, walks the ISO9660 file system of the
// data track and writes every file plus one WAV per audio track.
var cdDumpCmd = &cobra.Command{
	Use:   "dump [cue_file] [output_directory]",
	Short: "Extract files and audio tracks from a CUE/BIN image",
	Long: `Extract files and audio tracks from a CUE/BIN image.

This command reads the CUE sheet, loads the BIN it names and splits it into
tracks. The first MODE1 track is reassembled into an ISO9660 image; when it
holds an InstallShield cabinet (data1.hdr, data1.cab, ...) the cabinet is
expanded, otherwise the ISO files are written as they are. Every AUDIO track
is written as trackNN.wav (44.1 kHz, 16-bit stereo PCM).

When verbose mode is enabled (-v), it displays detailed information about
each file on the data track including:
  - ID (4-digit hex)
  - MSF (Minutes:Seconds:Frames)
  - LBA (Logical Block Address)
  - Size in sectors and bytes
  - Path within the CD structure

Example:
  discrip cd dump game.cue ./output/
  discrip cd dump -v game.cue ./output/`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cueFile := args[0]
		outputDir := args[1]

		processor := pkg.NewCDProcessor(afero.NewOsFs())

		fmt.Printf("Processing CD image file: %s\n", cueFile)
		fmt.Printf("Output directory: %s\n", outputDir)

		res, err := processor.Dump(cueFile, outputDir)
		if res == nil {
			return fmt.Errorf("failed to process CD image file: %w", err)
		}

		if common.VerboseMode {
			fmt.Printf("%-6s %-10s %-8s %-8s %-10s %s\n", "ID", "MSF", "LBA", "Sectors", "Size", "Path")
			for i, f := range res.ISOListings {
				size := uint32(len(f.Data))
				fmt.Printf("%04X   %-10s %-8d %-8d %-10d %s\n",
					i, common.SectorToMSF(int(f.Extent)), f.Extent,
					common.GetSizeInSectors(size), size, f.Path)
			}
		}

		if err == nil {
			fmt.Println("CD image file processed successfully!")
		}
		fmt.Printf("Audio tracks: %d\n", res.Tracks)
		if res.Expanded {
			fmt.Printf("Installer files: %d\n", res.Files)
		} else {
			fmt.Printf("Data track files: %d\n", res.Files)
		}
		fmt.Printf("Files extracted to: %s\n", outputDir)

		if err != nil {
			return fmt.Errorf("some files could not be extracted: %w", err)
		}
		return nil
	},
}

// init initializes the CD command with its subcommands and flags.
func init() {
	rootCmd.AddCommand(cdCmd)
	cdCmd.AddCommand(cdDumpCmd)
	verboseFlag(cdDumpCmd)
}
