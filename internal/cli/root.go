// Package cli implements the sherlock command-line tool: one-off screenshot
// analysis and username checks without running the API server.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/prompt"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/internal/vision"
)

// ErrOSINTUnavailable is returned when a command needs the enumeration tool
// and none is installed.
var ErrOSINTUnavailable = errors.New("osint tool is not configured")

type screenshotAnalyzer interface {
	AnalyzeScreenshot(ctx context.Context, img vision.Image, prefs *users.Preferences, stage prompt.Stage, findings *osint.Result) (vision.RawAnalysis, error)
}

type usernameChecker interface {
	CheckUsername(ctx context.Context, username string) osint.Result
}

// Deps are the clients a command runs against. OSINT may be nil.
type Deps struct {
	Analyzer  screenshotAnalyzer
	OSINT     usernameChecker
	JWTSecret string
	Close     func()
}

// Factory builds Deps lazily so that help and flag errors never touch
// credentials or the network.
type Factory func(ctx context.Context) (*Deps, error)

// NewRootCmd wires every subcommand to the same factory.
func NewRootCmd(factory Factory, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "sherlock",
		Short: "Analyze dating-app conversation screenshots from the terminal",
		Long: `sherlock runs the Screenshot Sherlock analysis pipeline locally.

It sends a screenshot to the configured vision model, normalizes the
result and prints it as JSON. With --osint-handle the analysis is enriched
with the public accounts found for that username.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewAnalyzeCmd(factory))
	root.AddCommand(NewOSINTCmd(factory))
	root.AddCommand(NewTokenCmd(factory))
	return root
}

func withDeps(ctx context.Context, factory Factory, fn func(*Deps) error) error {
	deps, err := factory(ctx)
	if err != nil {
		return err
	}
	if deps.Close != nil {
		defer deps.Close()
	}
	return fn(deps)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
