package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/mediatext/config"
	"github.com/nijaru/mediatext/media"
	"github.com/nijaru/mediatext/pipeline"
)

var (
	outputDir    string
	modelName    string
	language     string
	engine       string
	showProgress bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <url|file>",
	Short: "Transcribe one video URL or local media file",
	Example: `  mediatext transcribe https://www.youtube.com/watch?v=dQw4w9WgXcQ -o ./out
  mediatext transcribe ./lecture.mov -o ./out -m medium --progress`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory or s3://bucket/prefix")
	transcribeCmd.Flags().StringVarP(&modelName, "model", "m", "", "model tier: tiny, base, small, medium, large")
	transcribeCmd.Flags().StringVar(&language, "language", "", "spoken language code (default from config)")
	transcribeCmd.Flags().StringVar(&engine, "engine", "", "transcription engine: whisper, whisper.cpp, openai")
	transcribeCmd.Flags().BoolVar(&showProgress, "progress", false, "show a stage progress bar")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	var tier media.ModelTier
	if modelName != "" {
		t, err := media.ParseModelTier(modelName)
		if err != nil {
			return err
		}
		tier = t
	}

	cfg, log, closer, err := setup(func(c *config.Config) {
		if language != "" {
			c.Language = language
		}
		if engine != "" {
			c.Transcription.Engine = engine
		}
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	orch, err := pipeline.New(cfg, pipeline.WithLogger(logrus.NewEntry(log)))
	if err != nil {
		return err
	}

	source := args[0]
	job := media.Job{
		Kind:      media.ClassifySource(source),
		Source:    source,
		OutputDir: outputDir,
		Tier:      tier,
	}

	var observer pipeline.Observer = func(ev pipeline.Event) {
		log.WithField("state", ev.State).Info(ev.Status)
	}
	var bar *stageProgress
	if showProgress {
		bar = newStageProgress(cmd.ErrOrStderr(), media.Stem(source))
		observer = bar.Observe
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := orch.RunJob(ctx, job, observer)
	if bar != nil {
		bar.Finish(err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Transcript saved to %s\n", result.OutputPath)
	return nil
}
