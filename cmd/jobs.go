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
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dozken/translate-ai-pdf/internal"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage translation jobs in the ledger",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs with their progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := db.ListJobs(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs in the ledger.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tTARGET\tMODEL\tDONE\tFAILED\tPENDING\tCREATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
				j.ID, j.SourceLang, j.TargetLang, j.Model,
				j.Progress.Completed, j.Progress.Total, j.Progress.Failed,
				j.Progress.Pending+j.Progress.InProgress,
				j.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job and its unfinished units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		j, err := db.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		p, err := db.Progress(ctx, j.ID)
		if err != nil {
			return err
		}
		records, err := db.Snapshot(ctx, j.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Job:         %s\n", j.ID)
		fmt.Printf("Document:    %s\n", j.DocumentID)
		fmt.Printf("Languages:   %s -> %s\n", j.SourceLang, j.TargetLang)
		fmt.Printf("Model:       %s\n", j.Model)
		fmt.Printf("Created:     %s\n", j.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Completed:   %d/%d\n", p.Completed, p.Total)
		fmt.Printf("Failed:      %d\n", p.Failed)
		fmt.Printf("Pending:     %d\n", p.Pending)
		fmt.Printf("In progress: %d\n", p.InProgress)
		if !p.NextRetryAt.IsZero() {
			fmt.Printf("Next retry:  %s\n", p.NextRetryAt.Format("15:04:05"))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		header := false
		for _, r := range records {
			if r.State == internal.StateCompleted {
				continue
			}
			if !header {
				fmt.Println()
				fmt.Fprintln(w, "INDEX\tSTATE\tATTEMPTS\tLAST ERROR")
				header = true
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.Index, r.State, r.AttemptCount, snippet(r.LastError, 60))
		}
		return w.Flush()
	},
}

var exportOutput string

var jobsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a job's units as CSV",
	Long: `Write one CSV row per unit: index, state, attempts, source text,
translation and last error. Useful for reviewing a translation side by side
with the source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.Snapshot(context.Background(), args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("job %s not found", args[0])
		}

		out := os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output CSV: %w", err)
			}
			defer f.Close()
			out = f
		}

		w := csv.NewWriter(out)
		if err := w.Write([]string{"index", "state", "attempts", "source", "translation", "error"}); err != nil {
			return err
		}
		for _, r := range records {
			row := []string{
				strconv.Itoa(r.Index), string(r.State), strconv.Itoa(r.AttemptCount),
				r.SourceText, r.TranslatedText, r.LastError,
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}
		}
		w.Flush()
		return w.Error()
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a job and all of its units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteJob(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		fmt.Printf("Deleted job: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output CSV file (default stdout)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsExportCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
}
