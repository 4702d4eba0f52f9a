/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dozken/translate-ai-pdf/internal/driver"
	"github.com/dozken/translate-ai-pdf/internal/ledger"
	"github.com/dozken/translate-ai-pdf/internal/notify"
	"github.com/dozken/translate-ai-pdf/internal/segment"
	"github.com/dozken/translate-ai-pdf/internal/translator"
	"github.com/dozken/translate-ai-pdf/internal/validator"
)

var (
	inputFile  string
	outputFile string
	noProgress bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a PDF or text document",
	Long: `Translate a document unit by unit.

The document is normalized and split into translation units, which are
recorded in the ledger before the first call. Each unit is retried with
exponential backoff on transient errors; a unit that keeps failing is
marked failed and the run moves on.

Running the same command again resumes the job: completed units are
skipped. Use --retry-failed to give failed units another chance.

With --workers N, N units are translated at once. They share the call
rate limit and the output is still assembled in document order.

Available providers:
  - anthropic   Anthropic Claude (ANTHROPIC_API_KEY)
  - openai      OpenAI (OPENAI_API_KEY)
  - ollama      Ollama (self-hosted, no key)
  - googleai    Google Gemini (GOOGLE_API_KEY)
  - openrouter  OpenRouter (OPENROUTER_API_KEY)
  - google      Google Cloud Translate (credentials file or API key)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, logger, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		text, hints, err := readInput(inputFile)
		if err != nil {
			return err
		}

		seg, err := segment.New(cfg.Segment)
		if err != nil {
			return err
		}

		db, err := ledger.New(cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer db.Close()

		svc, err := buildService(ctx, cfg)
		if err != nil {
			return err
		}

		sub, err := driver.Submit(ctx, db, seg, driver.Document{
			Text:       text,
			Hints:      hints,
			SourceLang: cfg.SourceLang,
			TargetLang: cfg.TargetLang,
			Model:      translator.ModelName(svc),
		})
		if err != nil {
			return err
		}
		if sub.Resumed {
			fmt.Fprintf(os.Stderr, "Resuming job %s (%d units)\n", sub.Job.ID, sub.Job.UnitCount)
		} else {
			fmt.Fprintf(os.Stderr, "Created job %s (%d units)\n", sub.Job.ID, sub.Job.UnitCount)
		}

		glossary, err := db.GlossaryTerms(ctx, cfg.SourceLang, cfg.TargetLang)
		if err != nil {
			return fmt.Errorf("failed to load glossary: %w", err)
		}

		var opts []driver.Option
		if cfg.Validate {
			opts = append(opts, driver.WithValidator(validator.New(cfg.SourceLang, cfg.TargetLang)))
		}

		n := notify.New()
		var wg sync.WaitGroup
		listeners := []notify.Listener{notify.NewLogListener(logger)}
		if !noProgress {
			listeners = append(listeners, notify.NewProgressListener(os.Stderr))
		}
		for _, l := range listeners {
			events, unsubscribe := n.Subscribe(64)
			defer unsubscribe()
			wg.Add(1)
			go func(l notify.Listener) {
				defer wg.Done()
				notify.Run(events, l)
			}(l)
		}

		pool := driver.NewPool(db, svc, n, driverConfig(cfg, glossary), logger, opts...)
		if pool.Size() > 1 {
			fmt.Fprintf(os.Stderr, "Running %d workers\n", pool.Size())
		}
		res, runErr := pool.Run(ctx, sub.Job.ID)
		n.Close()
		wg.Wait()

		if res == nil {
			return runErr
		}

		res.Report.Log(logger)
		if len(res.Output.Completed) > 0 {
			if err := writeOutput(outputFile, res.Output.Text()); err != nil {
				return err
			}
		}

		switch {
		case errors.Is(runErr, context.Canceled):
			fmt.Printf("Interrupted: %d/%d units translated. Run the same command again to resume.\n",
				len(res.Output.Completed), res.Output.Total)
			return nil
		case runErr != nil:
			return runErr
		case res.Complete():
			fmt.Printf("Successfully translated %s to %s: %d units fully translated\n",
				cfg.SourceLang, cfg.TargetLang, res.Output.Total)
		default:
			fmt.Printf("Partially translated: %d/%d units, %d failed (indices: %s)\n",
				len(res.Output.Completed), res.Output.Total, len(res.Output.Failed), joinInts(res.Output.Failed))
			fmt.Println("Use --retry-failed to try the failed units again.")
		}
		fmt.Printf("Output written to %s\n", outputFile)
		return nil
	},
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input PDF or text file (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for translation (required)")
	translateCmd.Flags().StringP("source", "s", "ar", "Source language code")
	translateCmd.Flags().StringP("target", "t", "ru", "Target language code")
	translateCmd.Flags().String("provider", "anthropic", "Translation provider")
	translateCmd.Flags().String("model", "", "Model name (provider default if empty)")
	translateCmd.Flags().Int("max-retries", 3, "Retries per unit after the first attempt")
	translateCmd.Flags().Int("workers", 1, "Number of units translated concurrently")
	translateCmd.Flags().Bool("stream", false, "Stream translations from providers that support it")
	translateCmd.Flags().Bool("retry-failed", false, "Retry units that failed permanently in an earlier run")
	translateCmd.Flags().Bool("validate", false, "Reject translations not detected as the target language")
	translateCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	for key, flag := range map[string]string{
		"source_lang":         "source",
		"target_lang":         "target",
		"provider":            "provider",
		"model":               "model",
		"driver.max_retries":  "max-retries",
		"driver.workers":      "workers",
		"driver.stream":       "stream",
		"driver.retry_failed": "retry-failed",
		"validate":            "validate",
	} {
		_ = v.BindPFlag(key, translateCmd.Flags().Lookup(flag))
	}

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
}
