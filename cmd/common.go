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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/config"
	"github.com/dozken/translate-ai-pdf/internal/driver"
	"github.com/dozken/translate-ai-pdf/internal/ledger"
	"github.com/dozken/translate-ai-pdf/internal/metrics"
	"github.com/dozken/translate-ai-pdf/internal/pdftext"
	"github.com/dozken/translate-ai-pdf/internal/translator"
)

// loadConfig reads the configuration and builds the logger. The returned
// function closes the log file, if any.
func loadConfig() (config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, closeLog := config.SetupLogger(cfg.Log.File, config.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)
	return cfg, logger, closeLog, nil
}

// openLedger opens the ledger named by --db, the environment or the config.
func openLedger() (*ledger.Store, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	db, err := ledger.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return db, nil
}

// buildService constructs the translator for the configured provider and
// fails when it has no usable credentials.
func buildService(ctx context.Context, cfg config.Config) (translator.TranslationService, error) {
	return translator.Connect(ctx, translator.ServiceConfig{
		Provider:    cfg.Provider,
		Credentials: cfg.Credentials,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Driver.CallTimeout,
	})
}

// driverConfig converts the decoded settings into the driver's config. The
// report thresholds follow the segmentation limits.
func driverConfig(cfg config.Config, glossary map[string]string) driver.Config {
	d := cfg.Driver
	return driver.Config{
		MaxRetries:   d.MaxRetries,
		Delay:        d.Delay,
		BackoffBase:  d.BackoffBase,
		BackoffMax:   d.BackoffMax,
		StaleAfter:   d.StaleAfter,
		PollInterval: d.PollInterval,
		CallTimeout:  d.CallTimeout,
		Stream:       d.Stream,
		RetryFailed:  d.RetryFailed,
		ContextWords: d.ContextWords,
		Workers:      d.Workers,
		Glossary:     glossary,
		Instructions: d.Instructions,
		Thresholds:   metrics.ThresholdsFrom(cfg.Segment),
	}
}

// readInput loads a document. PDF files are extracted with line positions;
// anything else is read as UTF-8 text without layout hints.
func readInput(path string) (string, []internal.LayoutHint, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		doc, err := pdftext.Extract(path)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(os.Stderr, "Extracted %d pages from %s\n", doc.Pages, path)
		return doc.Text, doc.Hints, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil, nil
}

func writeOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
