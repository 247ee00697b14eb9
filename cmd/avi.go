// Package cmd provides command-line interface for AVI cutscene processing.
// This file contains commands for inspecting cutscenes and exporting their
// frames and audio.
package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hansbonini/discrip/pkg"
	"github.com/hansbonini/discrip/pkg/avi"
	"github.com/hansbonini/discrip/pkg/codec/adpcm"
)

// aviCmd represents the parent command for all AVI operations.
var aviCmd = &cobra.Command{
	Use:   "avi",
	Short: "Process AVI cutscenes",
	Long: `Process AVI cutscenes.

Commands:
  info      List the streams of an AVI file
  frames    Decode the MS Video 1 stream into PNG frames
  audio     Decode the MS-ADPCM or PCM stream into a WAV file

Examples:
  discrip avi info intro.avi
  discrip avi frames intro.avi ./frames/
  discrip avi audio intro.avi intro.wav`,
}

var aviInfoCmd = &cobra.Command{
	Use:   "info [avi_file]",
	Short: "List the streams of an AVI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCutscene(args[0])
		if err != nil {
			return err
		}

		h := c.File.Header
		fmt.Printf("File: %s\n", args[0])
		fmt.Printf("Size: %dx%d, %d frames, %d streams\n", h.Width, h.Height, h.TotalFrames, len(c.File.Streams))
		if d := c.Duration(); d > 0 {
			fmt.Printf("Duration: %.2fs\n", d)
		}
		fmt.Printf("%-6s %-6s %-10s %-20s %s\n", "Index", "Type", "Codec", "Format", "Chunks")
		for _, s := range c.File.Streams {
			codec := s.Codec()
			if codec == "" {
				codec = "?"
			}
			fmt.Printf("%-6d %-6s %-10s %-20s %d\n", s.Index, s.Header.Type, codec, streamFormat(s), len(s.Chunks))
		}
		return nil
	},
}

var aviFramesCmd = &cobra.Command{
	Use:   "frames [avi_file] [output_directory]",
	Short: "Decode the video stream into PNG frames",
	Long: `Decode the video stream of an AVI file into PNG frames.

Only MS Video 1 (CRAM, MSVC, WHAM) is decoded. Frames are written as
frame_00000.png, frame_00001.png, ... in display order; a dropped frame repeats
the previous one.

Example:
  discrip avi frames intro.avi ./frames/`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCutscene(args[0])
		if err != nil {
			return err
		}
		if err := pkg.NewCutsceneProcessor().DecodeVideo(c); err != nil {
			return fmt.Errorf("failed to decode video: %w", err)
		}
		if err := pkg.NewExporter(afero.NewOsFs()).ExportFrames(c.Frames, args[1]); err != nil {
			return err
		}
		fmt.Printf("Exported %d frames to: %s\n", len(c.Frames), args[1])
		return nil
	},
}

var aviAudioCmd = &cobra.Command{
	Use:   "audio [avi_file] [output_file]",
	Short: "Decode the audio stream into a WAV file",
	Long: `Decode the audio stream of an AVI file into a WAV file.

MS-ADPCM and 16-bit PCM streams are supported. The output is 16-bit PCM, or
32-bit float samples in [-1, 1) with --float.

Example:
  discrip avi audio intro.avi intro.wav
  discrip avi audio --float intro.avi intro.wav`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asFloat, err := cmd.Flags().GetBool("float")
		if err != nil {
			return fmt.Errorf("error getting float flag: %w", err)
		}

		c, err := openCutscene(args[0])
		if err != nil {
			return err
		}
		if err := pkg.NewCutsceneProcessor().DecodeAudio(c); err != nil {
			return fmt.Errorf("failed to decode audio: %w", err)
		}

		e := pkg.NewExporter(afero.NewOsFs())
		if asFloat {
			err = e.ExportAudioFloat(adpcm.Normalize(c.Samples), c.Channels, c.SampleRate, args[1])
		} else {
			err = e.ExportAudio(c.Samples, c.Channels, c.SampleRate, args[1])
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d samples (%d channels, %d Hz) to: %s\n", len(c.Samples), c.Channels, c.SampleRate, args[1])
		return nil
	},
}

func openCutscene(name string) (*pkg.Cutscene, error) {
	data, err := afero.ReadFile(afero.NewOsFs(), name)
	if err != nil {
		return nil, fmt.Errorf("failed to read AVI file: %w", err)
	}
	return pkg.NewCutsceneProcessor().Open(data)
}

func streamFormat(s *avi.Stream) string {
	switch {
	case s.Video != nil:
		return fmt.Sprintf("%s %dx%d", s.Video.Compression, s.Video.Width, s.Video.Height)
	case s.Audio != nil:
		return fmt.Sprintf("%d ch %d Hz", s.Audio.Channels, s.Audio.SamplesPerSec)
	}
	return ""
}

func init() {
	rootCmd.AddCommand(aviCmd)
	aviCmd.AddCommand(aviInfoCmd)
	aviCmd.AddCommand(aviFramesCmd)
	aviCmd.AddCommand(aviAudioCmd)

	verboseFlag(aviInfoCmd)
	verboseFlag(aviFramesCmd)
	verboseFlag(aviAudioCmd)
	aviAudioCmd.Flags().Bool("float", false, "Write 32-bit float samples")
}
