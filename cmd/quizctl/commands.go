package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/gallery-quiz/internal/app"
	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/logging"
)

const (
	outputText = "text"
	outputJSON = "json"

	defaultConcurrency = 4
)

// Command errors. Each one makes quizctl exit non-zero.
var (
	ErrIncomplete      = errors.New("answers incomplete")
	ErrUnknownOutput   = errors.New("unknown output format")
	ErrStepOutOfBounds = errors.New("step out of range")
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	output   string
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "quizctl",
		Short:         "Inspect saved gallery quiz snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.output != outputText && opts.output != outputJSON {
				return fmt.Errorf("%w: %q", ErrUnknownOutput, opts.output)
			}

			opts.logger = logging.NewWithWriter(&logging.Config{
				Level:   opts.logLevel,
				Format:  "text",
				Service: "quizctl",
			}, cmd.ErrOrStderr())

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text or json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newCatalogCmd(opts),
		newValidateCmd(opts),
		newRecommendCmd(opts),
		newQuoteLinkCmd(opts),
	)

	return root
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the steps and the option catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view := app.CatalogView{Steps: domain.Steps(), Catalog: domain.DefaultCatalog()}
			out := cmd.OutOrStdout()

			if opts.output == outputJSON {
				return writeJSON(out, view)
			}

			for _, s := range view.Steps {
				fmt.Fprintf(out, "%d. %s (%d%%)\n", s.Step, s.Title, s.Percentage)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "usage:                %s\n", strings.Join(view.Catalog.Usage, ", "))
			fmt.Fprintf(out, "products:             %s\n", strings.Join(view.Catalog.Products, ", "))
			fmt.Fprintf(out, "languages:            %s\n", strings.Join(view.Catalog.Languages, ", "))
			fmt.Fprintf(out, "points of interest:   %s\n", strings.Join(view.Catalog.PointsOfInterest, ", "))
			fmt.Fprintf(out, "update frequency:     %s\n", strings.Join(view.Catalog.UpdateFrequency, ", "))
			fmt.Fprintf(out, "objectives (max %d):  %s\n", view.Catalog.MaxObjectives, strings.Join(view.Catalog.Objectives, ", "))
			fmt.Fprintf(out, "commercial structure: %s\n", strings.Join(view.Catalog.CommercialStructure, ", "))

			return nil
		},
	}
}

// stepStatus is one line of validate output.
type stepStatus struct {
	Step     domain.Step `json:"step"`
	Title    string      `json:"title"`
	Complete bool        `json:"complete"`
}

type validateReport struct {
	File   string       `json:"file"`
	Legacy bool         `json:"legacy"`
	Steps  []stepStatus `json:"steps"`
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var step int

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a snapshot against the schema and the step rules",
		Long: "Decodes a snapshot (versioned envelope or legacy answers object) and reports\n" +
			"which steps its answers would allow the visitor to leave. With --step only\n" +
			"that step is checked.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if step != 0 && !domain.Step(step).Valid() {
				return fmt.Errorf("%w: %d", ErrStepOutOfBounds, step)
			}

			snap, err := readSnapshot(args[0], opts.logger)
			if err != nil {
				return err
			}

			report := validateReport{File: args[0], Legacy: snap.Legacy}
			for _, info := range domain.Steps() {
				if step != 0 && info.Step != domain.Step(step) {
					continue
				}
				report.Steps = append(report.Steps, stepStatus{
					Step:     info.Step,
					Title:    info.Title,
					Complete: domain.CanAdvance(info.Step, snap.Answers),
				})
			}

			if err := printValidate(cmd.OutOrStdout(), opts.output, report); err != nil {
				return err
			}

			for _, s := range report.Steps {
				if !s.Complete {
					return fmt.Errorf("%w: step %d", ErrIncomplete, s.Step)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&step, "step", 0, "check a single step (1-7)")

	return cmd
}

func printValidate(out io.Writer, format string, report validateReport) error {
	if format == outputJSON {
		return writeJSON(out, report)
	}

	if report.Legacy {
		fmt.Fprintf(out, "%s: legacy snapshot\n", report.File)
	}

	for _, s := range report.Steps {
		status := "ok"
		if !s.Complete {
			status = "incomplete"
		}
		fmt.Fprintf(out, "step %d %-20s %s\n", s.Step, s.Title, status)
	}

	return nil
}

// recommendation is the recommend output for one snapshot.
type recommendation struct {
	File    string   `json:"file"`
	Items   []string `json:"items"`
	Summary string   `json:"summary"`
}

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "recommend <file>...",
		Short: "Derive recommendations for one or more snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := recommendAll(cmd.Context(), args, concurrency, opts.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.output == outputJSON {
				return writeJSON(out, results)
			}

			for _, r := range results {
				fmt.Fprintf(out, "%s\n", r.File)
				for _, item := range r.Items {
					fmt.Fprintf(out, "  - %s\n", item)
				}
				if r.Summary != "" {
					fmt.Fprintf(out, "  %s\n", r.Summary)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", defaultConcurrency, "files evaluated in parallel")

	return cmd
}

// recommendAll evaluates the files in parallel. Results keep the argument order.
func recommendAll(ctx context.Context, files []string, limit int, logger *slog.Logger) ([]recommendation, error) {
	return app.MapLimit(ctx, limit, files, func(_ context.Context, file string) (recommendation, error) {
		snap, err := readSnapshot(file, logger)
		if err != nil {
			return recommendation{}, err
		}

		if !domain.CanAdvance(domain.LastStep, snap.Answers) {
			logger.Warn("snapshot has not reached the final step", slog.String("file", file))
		}

		rec := domain.Recommend(snap.Answers)

		return recommendation{File: file, Items: rec.Items, Summary: rec.Summary}, nil
	})
}

func newQuoteLinkCmd(opts *rootOptions) *cobra.Command {
	var quote domain.QuoteOptions

	cmd := &cobra.Command{
		Use:   "quote-link <file>",
		Short: "Print the mailto quote link for a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0], opts.logger)
			if err != nil {
				return err
			}

			link := domain.QuoteLink(snap.Answers, quote)
			out := cmd.OutOrStdout()

			if opts.output == outputJSON {
				return writeJSON(out, map[string]string{"file": args[0], "quoteLink": link})
			}

			fmt.Fprintln(out, link)

			return nil
		},
	}

	cmd.Flags().StringVar(&quote.Recipient, "recipient", domain.DefaultQuoteRecipient, "quote recipient address")
	cmd.Flags().StringVar(&quote.Subject, "subject", domain.DefaultQuoteSubject, "quote email subject")

	return cmd
}

// readSnapshot loads and decodes a snapshot file.
func readSnapshot(path string, logger *slog.Logger) (app.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("reading %s: %w", path, err)
	}

	snap, err := app.DecodeSnapshot(data)
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}

	logger.Debug("snapshot decoded",
		slog.String("file", path),
		slog.Int("version", snap.Version),
		slog.Bool("legacy", snap.Legacy),
	)

	return snap, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
