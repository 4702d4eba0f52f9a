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
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dozken/translate-ai-pdf/internal/estimate"
	"github.com/dozken/translate-ai-pdf/internal/normalize"
)

var (
	estimateInput string
	outputRatio   float64
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate token and character usage per provider",
	Long: `Count the input size of a document for each provider family and
predict the output size with a fixed output/input ratio.

OpenAI counts are exact (tiktoken). Anthropic and Google Gemini counts are
approximated with the cl100k_base encoding. Google Translate bills by
character.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _, err := readInput(estimateInput)
		if err != nil {
			return err
		}
		text = normalize.Text(text)

		estimators, err := estimate.Defaults()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Tokenizer unavailable (%v), counting characters only\n", err)
			estimators = []estimate.Estimator{estimate.NewChars("all")}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tMODEL\tUNIT\tINPUT\tOUTPUT\tEXACT")
		for _, e := range estimate.Run(text, outputRatio, estimators...) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%v\n", e.Provider, e.Model, e.Unit, e.Input, e.Output, e.Exact)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringVarP(&estimateInput, "input", "i", "", "Input PDF or text file (required)")
	estimateCmd.Flags().Float64Var(&outputRatio, "output-ratio", estimate.DefaultOutputRatio, "Expected output/input size ratio")

	estimateCmd.MarkFlagRequired("input")
}
