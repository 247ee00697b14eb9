// Package cmd provides command-line interface functionality for discrip.
// discrip extracts the assets of CD-ROM era PC games: WAD containers,
// InstallShield cabinets, ISO9660 images, CUE/BIN discs and AVI cutscenes.
package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/config"
)

var (
	cfgFile string
	v       = config.New()
	cfg     = config.Default()
)

// rootCmd represents the base command when called without any subcommands.
// It provides the main entry point for the discrip application.
var rootCmd = &cobra.Command{
	Use:   "discrip",
	Short: "Extract assets from CD-ROM era PC game discs",
	Long: `discrip - Extract the assets of CD-ROM era PC games into plain files.

Currently supports:
  - WAD containers (magic "WWAD"), including WADs nested in other inputs
  - InstallShield version 5 cabinets (data1.hdr + data1.cab, data2.cab, ...)
  - ISO9660 images with an installer cabinet
  - CUE/BIN discs (data track and Red Book audio tracks)
  - ZIP archives
  - AVI cutscenes (MS Video 1 frames, MS-ADPCM and PCM audio)

Examples:
  discrip extract game.iso ./output/
  discrip extract game.cue game.bin ./output/
  discrip extract data1.hdr data1.cab data2.cab ./output/
  discrip cd dump game.cue ./output/
  discrip avi info intro.avi
  discrip avi frames intro.avi ./frames/
  discrip avi audio intro.avi intro.wav

Settings are read from --config (YAML), then DISCRIP_* environment variables.

Use 'discrip [command] --help' for more information about a command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main() and serves as the entry point for command execution.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// init initializes the root command with flags and configuration settings.
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-file", "", "Also write log output to this file (rotated)")
	rootCmd.PersistentFlags().String("code-page", "", "Code page for names inside WAD containers (e.g. windows-1252, cp437)")
	rootCmd.PersistentFlags().Int("workers", 0, "Number of containers parsed concurrently")

	_ = v.BindPFlag(config.KeyLogFile, rootCmd.PersistentFlags().Lookup("log-file"))
	_ = v.BindPFlag(config.KeyCodePage, rootCmd.PersistentFlags().Lookup("code-page"))
	_ = v.BindPFlag(config.KeyWorkers, rootCmd.PersistentFlags().Lookup("workers"))
}

// initConfig loads the configuration and applies the logging settings.
// Flags only override the file and environment when set explicitly.
func initConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed {
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	common.SetVerboseMode(cfg.Verbose)

	if cfg.LogFile != "" {
		common.SetLogOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}))
	}
	return nil
}

// verboseFlag adds the per-command -v flag.
func verboseFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP("verbose", "v", false, "Enable verbose output with detailed file information")
}
