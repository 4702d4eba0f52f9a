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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dozken/translate-ai-pdf/internal/config"
	"github.com/dozken/translate-ai-pdf/internal/ledger"
	"github.com/dozken/translate-ai-pdf/internal/translator"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Fix the translation of names and recurring terms",
	Long: `Keep per-language-pair term translations in the ledger.

Every unit of a job is sent with the terms of its language pair, so a
name such as الغزالي comes out as аль-Газали in every unit instead of
drifting between spellings. The pair defaults to the configured source
and target languages (ar → ru unless changed).`,
}

var (
	glossarySource string
	glossaryTarget string
	glossaryAll    bool
	glossaryPrompt bool
)

// withGlossary resolves the language pair and opens the ledger for fn.
func withGlossary(fn func(ctx context.Context, db *ledger.Store, source, target string) error) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	source, target := cfg.SourceLang, cfg.TargetLang
	if glossarySource != "" {
		source = glossarySource
	}
	if glossaryTarget != "" {
		target = glossaryTarget
	}

	db, err := ledger.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer db.Close()
	return fn(context.Background(), db, source, target)
}

var glossaryShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"list", "ls"},
	Short:   "Show the terms used for a language pair",
	Long: `Show the terms sent with every unit of the language pair.

--prompt prints the terminology block exactly as the model receives it.
--all lists the entries of every pair with their IDs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGlossary(func(ctx context.Context, db *ledger.Store, source, target string) error {
			if glossaryAll {
				entries, err := db.ListGlossaryTerms(ctx, "", "")
				if err != nil {
					return fmt.Errorf("failed to list glossary: %w", err)
				}
				return printEntries(os.Stdout, entries)
			}

			terms, err := db.GlossaryTerms(ctx, source, target)
			if err != nil {
				return fmt.Errorf("failed to load glossary: %w", err)
			}
			if len(terms) == 0 {
				fmt.Printf("No terms for %s → %s.\n", source, target)
				return nil
			}
			if glossaryPrompt {
				fmt.Print(translator.GlossaryBlock(terms))
				return nil
			}

			entries, err := db.ListGlossaryTerms(ctx, source, target)
			if err != nil {
				return fmt.Errorf("failed to list glossary: %w", err)
			}
			fmt.Printf("%d terms for %s → %s\n\n", len(terms), translator.LanguageName(source), translator.LanguageName(target))
			return printEntries(os.Stdout, entries)
		})
	},
}

func printEntries(out io.Writer, entries []ledger.GlossaryEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Glossary is empty.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tTERM\tTRANSLATION\tID")
	for _, e := range entries {
		fmt.Fprintf(w, "%s→%s\t%s\t%s\t%s\n", e.SourceLang, e.TargetLang, e.SourceTerm, e.TargetTerm, e.ID)
	}
	return w.Flush()
}

var glossarySetCmd = &cobra.Command{
	Use:     "set <term> <translation>",
	Aliases: []string{"add"},
	Short:   "Fix the translation of one term",
	Long: `Fix the translation of one term. Setting a term again replaces it.

Example:
  translate-ai-pdf glossary set "الغزالي" "аль-Газали"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGlossary(func(ctx context.Context, db *ledger.Store, source, target string) error {
			if err := db.AddGlossaryTerm(ctx, source, target, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to set term: %w", err)
			}
			fmt.Printf("%s → %s: %s = %s\n", source, target, args[0], args[1])
			return nil
		})
	},
}

var glossaryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load terms from a tab-separated file",
	Long: `Load terms from a file with one "term<TAB>translation" pair per line.
Blank lines and lines starting with # are skipped. Existing terms are
replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open glossary file: %w", err)
		}
		defer f.Close()

		pairs, err := parseTerms(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return withGlossary(func(ctx context.Context, db *ledger.Store, source, target string) error {
			for _, p := range pairs {
				if err := db.AddGlossaryTerm(ctx, source, target, p[0], p[1]); err != nil {
					return fmt.Errorf("failed to set term %q: %w", p[0], err)
				}
			}
			fmt.Printf("Imported %d terms for %s → %s\n", len(pairs), source, target)
			return nil
		})
	},
}

// parseTerms reads term/translation pairs separated by a tab.
func parseTerms(r io.Reader) ([][2]string, error) {
	var pairs [][2]string
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		term, translation, ok := strings.Cut(line, "\t")
		term, translation = strings.TrimSpace(term), strings.TrimSpace(translation)
		if !ok || term == "" || translation == "" {
			return nil, fmt.Errorf("line %d: want term<TAB>translation", n)
		}
		pairs = append(pairs, [2]string{term, translation})
	}
	return pairs, sc.Err()
}

var glossaryRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a term by the ID shown in show --all",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGlossary(func(ctx context.Context, db *ledger.Store, _, _ string) error {
			if err := db.DeleteGlossaryTerm(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove term: %w", err)
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.PersistentFlags().StringVarP(&glossarySource, "source", "s", "", "Source language code (default from config)")
	glossaryCmd.PersistentFlags().StringVarP(&glossaryTarget, "target", "t", "", "Target language code (default from config)")
	glossaryShowCmd.Flags().BoolVar(&glossaryAll, "all", false, "List every language pair")
	glossaryShowCmd.Flags().BoolVar(&glossaryPrompt, "prompt", false, "Print the terminology block sent to the model")

	glossaryCmd.AddCommand(glossaryShowCmd, glossarySetCmd, glossaryImportCmd, glossaryRemoveCmd)
}
