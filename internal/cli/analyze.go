package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
)

const cliOwner = "cli"

type analyzeOptions struct {
	attachmentStyle string
	datingGoal      string
	stage           string
	osintHandle     string
}

// AnalyzeOutput is what `sherlock analyze` prints.
type AnalyzeOutput struct {
	Analysis    analysis.Analysis `json:"analysis"`
	HealthScore float64           `json:"health_score"`
	OSINT       *osint.Result     `json:"osint,omitempty"`
}

// NewAnalyzeCmd creates the 'analyze' command.
func NewAnalyzeCmd(factory Factory) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze one conversation screenshot",
		Example: `  sherlock analyze chat.png
  sherlock analyze chat.png --attachment-style anxious --dating-goal casual
  sherlock analyze chat.png --stage established --osint-handle sam_rivers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, factory, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.attachmentStyle, "attachment-style", users.AttachmentSecure, "secure, anxious or avoidant")
	cmd.Flags().StringVar(&opts.datingGoal, "dating-goal", users.GoalSerious, "casual, serious or exploring")
	cmd.Flags().StringVar(&opts.stage, "stage", string(prompt.StageEarly), "early or established")
	cmd.Flags().StringVar(&opts.osintHandle, "osint-handle", "", "enrich the analysis with accounts found for this username")

	return cmd
}

func runAnalyze(cmd *cobra.Command, factory Factory, path string, opts analyzeOptions) error {
	prefs := users.Preferences{AttachmentStyle: opts.attachmentStyle, DatingGoal: opts.datingGoal}
	if err := prefs.Validate(); err != nil {
		return err
	}
	stage, err := parseStage(opts.stage)
	if err != nil {
		return err
	}
	handle := ""
	if strings.TrimSpace(opts.osintHandle) != "" {
		h, ok := osint.NormalizeHandle(opts.osintHandle)
		if !ok {
			return fmt.Errorf("invalid osint handle %q", opts.osintHandle)
		}
		handle = h
		prefs.AdvancedMode = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read screenshot: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("read screenshot: %s is empty", path)
	}
	img := vision.NewImage(data, http.DetectContentType(data))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withDeps(ctx, factory, func(deps *Deps) error {
		var findings *osint.Result
		if handle != "" {
			if deps.OSINT == nil {
				return ErrOSINTUnavailable
			}
			res := deps.OSINT.CheckUsername(ctx, handle)
			if !res.Failed() {
				findings = &res
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "osint scan failed, continuing without it: %s\n", res.Error)
			}
		}

		raw, err := deps.Analyzer.AnalyzeScreenshot(ctx, img, &prefs, stage, findings)
		if err != nil {
			return err
		}
		a := analysis.Normalize(raw.Data, cliOwner, cliOwner, time.Now())
		return writeJSON(cmd.OutOrStdout(), AnalyzeOutput{
			Analysis:    a,
			HealthScore: analysis.HealthScore(a),
			OSINT:       findings,
		})
	})
}

func parseStage(s string) (prompt.Stage, error) {
	switch prompt.Stage(strings.ToLower(strings.TrimSpace(s))) {
	case "", prompt.StageEarly:
		return prompt.StageEarly, nil
	case prompt.StageEstablished:
		return prompt.StageEstablished, nil
	default:
		return "", fmt.Errorf("invalid stage %q: want early or established", s)
	}
}
