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
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dozken/translate-ai-pdf/internal/metrics"
	"github.com/dozken/translate-ai-pdf/internal/normalize"
	"github.com/dozken/translate-ai-pdf/internal/segment"
)

var (
	segmentInput string
	showUnits    bool
	segmentJSON  bool
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Split a document into units without translating",
	Long: `Normalize and segment a document and print the segmentation metrics.

Useful for tuning the segment.* settings before starting a paid
translation run. Nothing is written to the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		text, hints, err := readInput(segmentInput)
		if err != nil {
			return err
		}

		seg, err := segment.New(cfg.Segment)
		if err != nil {
			return err
		}
		units := seg.Split(normalize.Text(text), hints)
		report := metrics.Compute(units, metrics.ThresholdsFrom(cfg.Segment))

		if segmentJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			out := map[string]any{"metrics": report}
			if showUnits {
				out["units"] = units
			}
			return enc.Encode(out)
		}

		if showUnits {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tCHARS\tSTRATEGY\tFLAGS\tTEXT")
			for _, u := range units {
				flags := ""
				if u.Oversize {
					flags = "oversize"
				} else if u.Undersize {
					flags = "undersize"
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", u.Index, u.CharCount, u.Strategy, flags, snippet(u.SourceText, 50))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Println()
		}
		return report.WriteText(os.Stdout)
	},
}

// snippet shortens s to at most n runes for table output.
func snippet(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return string(r)
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	segmentCmd.Flags().StringVarP(&segmentInput, "input", "i", "", "Input PDF or text file (required)")
	segmentCmd.Flags().BoolVar(&showUnits, "show-units", false, "List every unit")
	segmentCmd.Flags().BoolVar(&segmentJSON, "json", false, "Print JSON instead of text")

	segmentCmd.MarkFlagRequired("input")
}
