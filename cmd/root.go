package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/mediatext/config"
	"github.com/nijaru/mediatext/logger"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mediatext",
	Short: "Transcribe videos and local media files to plain text",
	Long: `mediatext downloads the audio of a video URL, or normalizes a local media
file, runs it through a whisper model and writes <name>.txt to the chosen
output directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "verbose output")
}

// setup loads configuration, applies mutate and builds the logger.
func setup(mutate func(*config.Config)) (config.Config, *logrus.Logger, io.Closer, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if mutate != nil {
		mutate(&cfg)
		if err := cfg.Validate(); err != nil {
			return config.Config{}, nil, nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, log, closer, nil
}
