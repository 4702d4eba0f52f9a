// Package metrics computes segmentation quality statistics.
package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/segment"
)

// Thresholds are the size limits a report is judged against.
type Thresholds struct {
	MinLength        int
	MaxParagraphSize int
	AlertThreshold   float64
}

// ThresholdsFrom takes the limits from a segmentation config.
func ThresholdsFrom(cfg segment.Config) Thresholds {
	return Thresholds{
		MinLength:        cfg.MinLength,
		MaxParagraphSize: cfg.MaxParagraphSize,
		AlertThreshold:   cfg.AlertThreshold,
	}
}

// Buckets is the unit size distribution.
type Buckets struct {
	Tiny   int `json:"tiny"`   // < 100
	Small  int `json:"small"`  // 100-499
	Medium int `json:"medium"` // 500-1499
	Large  int `json:"large"`  // 1500-2000
	Huge   int `json:"huge"`   // > 2000
}

// Report summarizes a segmentation run.
type Report struct {
	Count          int                       `json:"count"`
	Mean           float64                   `json:"mean"`
	Median         float64                   `json:"median"`
	Min            int                       `json:"min"`
	Max            int                       `json:"max"`
	OverSegmented  int                       `json:"over_segmented"`
	OverRate       float64                   `json:"over_segmentation_rate"`
	UnderSegmented int                       `json:"under_segmented"`
	UnderRate      float64                   `json:"under_segmentation_rate"`
	Oversize       int                       `json:"oversize_unavoidable"`
	ByStrategy     map[internal.Strategy]int `json:"by_strategy"`
	Buckets        Buckets                   `json:"buckets"`
	MediumPct      float64                   `json:"medium_pct"`
	// Alert is set when the over-segmentation rate exceeds the threshold.
	Alert bool `json:"alert"`
}

// Compute builds the report for units. An empty slice gives a zero report.
func Compute(units []internal.Unit, th Thresholds) Report {
	r := Report{Count: len(units), ByStrategy: map[internal.Strategy]int{}}
	if len(units) == 0 {
		return r
	}

	sizes := make([]int, len(units))
	total := 0
	for i, u := range units {
		n := u.CharCount
		sizes[i] = n
		total += n

		if n < th.MinLength {
			r.OverSegmented++
		}
		if n > th.MaxParagraphSize {
			r.UnderSegmented++
		}
		if u.Oversize {
			r.Oversize++
		}
		r.ByStrategy[u.Strategy]++

		switch {
		case n < 100:
			r.Buckets.Tiny++
		case n < 500:
			r.Buckets.Small++
		case n < 1500:
			r.Buckets.Medium++
		case n <= 2000:
			r.Buckets.Large++
		default:
			r.Buckets.Huge++
		}
	}

	sort.Ints(sizes)
	count := float64(len(sizes))
	r.Min, r.Max = sizes[0], sizes[len(sizes)-1]
	r.Mean = float64(total) / count
	if mid := len(sizes) / 2; len(sizes)%2 == 1 {
		r.Median = float64(sizes[mid])
	} else {
		r.Median = float64(sizes[mid-1]+sizes[mid]) / 2
	}
	r.OverRate = float64(r.OverSegmented) / count
	r.UnderRate = float64(r.UnderSegmented) / count
	r.MediumPct = 100 * float64(r.Buckets.Medium) / count
	r.Alert = r.OverRate > th.AlertThreshold
	return r
}

// Log writes the report as structured log records.
func (r Report) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("segmentation metrics",
		"units", r.Count,
		"mean", fmt.Sprintf("%.0f", r.Mean),
		"median", r.Median,
		"min", r.Min,
		"max", r.Max,
		"over_segmented", r.OverSegmented,
		"under_segmented", r.UnderSegmented,
		"oversize", r.Oversize,
		"medium_pct", fmt.Sprintf("%.1f", r.MediumPct),
	)
	if r.Alert {
		logger.Warn("over-segmentation alert",
			"rate", fmt.Sprintf("%.1f%%", 100*r.OverRate),
			"over_segmented", r.OverSegmented,
			"units", r.Count,
		)
	}
}

// WriteText prints a human-readable report.
func (r Report) WriteText(w io.Writer) error {
	strategies := make([]string, 0, len(r.ByStrategy))
	for s := range r.ByStrategy {
		strategies = append(strategies, string(s))
	}
	sort.Strings(strategies)

	if _, err := fmt.Fprintf(w, "Units:              %d\n", r.Count); err != nil {
		return err
	}
	fmt.Fprintf(w, "Size mean/median:   %.0f / %.0f\n", r.Mean, r.Median)
	fmt.Fprintf(w, "Size min/max:       %d / %d\n", r.Min, r.Max)
	fmt.Fprintf(w, "Over-segmented:     %d (%.1f%%)\n", r.OverSegmented, 100*r.OverRate)
	fmt.Fprintf(w, "Under-segmented:    %d (%.1f%%)\n", r.UnderSegmented, 100*r.UnderRate)
	fmt.Fprintf(w, "Oversize tokens:    %d\n", r.Oversize)
	fmt.Fprintf(w, "Distribution:       tiny %d, small %d, medium %d, large %d, huge %d\n",
		r.Buckets.Tiny, r.Buckets.Small, r.Buckets.Medium, r.Buckets.Large, r.Buckets.Huge)
	fmt.Fprintf(w, "Medium range:       %.1f%%\n", r.MediumPct)
	for _, s := range strategies {
		fmt.Fprintf(w, "Strategy %-18s %d\n", s+":", r.ByStrategy[internal.Strategy(s)])
	}
	if r.Alert {
		_, err := fmt.Fprintln(w, "WARNING: over-segmentation rate above threshold")
		return err
	}
	return nil
}
