package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/youtube-reviewer/internal/models"
	"github.com/tjfontaine/youtube-reviewer/internal/phases"
	"github.com/tjfontaine/youtube-reviewer/internal/pipeline"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var level string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <video_url>",
		Short: "Extract the key concepts of one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.initLogger(cmd.ErrOrStderr())

			a, err := newApp(cfg, logger, appDeps{})
			if err != nil {
				return err
			}
			defer a.Close()

			return runAnalyze(cmd.Context(), a.registry, args[0], level, asJSON, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", phases.LevelBeginner, "Knowledge level: beginner, intermediate or advanced")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON instead of a table")

	return cmd
}

func runAnalyze(ctx context.Context, registry *phases.Registry, videoURL, level string, asJSON bool, out, progress io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := phases.Request{VideoURL: videoURL, KnowledgeLevel: level}
	if err := req.Validate(phases.KeyConcepts); err != nil {
		return err
	}

	pl, err := registry.Pipeline(phases.KeyConcepts)
	if err != nil {
		return err
	}

	var output any
	for ev := range pl.Run(ctx, req.Payload()) {
		switch ev.Type {
		case pipeline.EventStepStarted:
			fmt.Fprintf(progress, "-> %s\n", ev.StageID)
		case pipeline.EventStepFailed:
			fmt.Fprintf(progress, "!! %s: %s\n", ev.StageID, ev.Message)
		case pipeline.EventOutput:
			output = ev.Value
		}
	}
	if output == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New("phase ended without a result")
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	switch v := output.(type) {
	case *models.KeyConceptsResponse:
		if v.Error != "" {
			return errors.New(v.Error)
		}
		fmt.Fprintln(out, renderKeyConcepts(v))
		return nil
	case pipeline.ErrorResult:
		return errors.New(v.Error)
	default:
		return fmt.Errorf("unexpected result %T", output)
	}
}
