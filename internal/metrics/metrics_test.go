package metrics_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/dozken/translate-ai-pdf/internal"
	"github.com/dozken/translate-ai-pdf/internal/metrics"
	"github.com/dozken/translate-ai-pdf/internal/segment"
)

func units(sizes ...int) []internal.Unit {
	out := make([]internal.Unit, len(sizes))
	for i, n := range sizes {
		out[i] = internal.Unit{Index: i, CharCount: n, Strategy: internal.StrategyExplicitBreak}
	}
	return out
}

func TestCompute(t *testing.T) {
	th := metrics.ThresholdsFrom(segment.DefaultConfig())
	r := metrics.Compute(units(50, 300, 800, 1200, 1800, 2500), th)

	if r.Count != 6 {
		t.Errorf("Count = %d", r.Count)
	}
	if r.Min != 50 || r.Max != 2500 {
		t.Errorf("Min/Max = %d/%d", r.Min, r.Max)
	}
	if r.Median != 1000 {
		t.Errorf("Median = %v, want 1000", r.Median)
	}
	if want := float64(50+300+800+1200+1800+2500) / 6; r.Mean != want {
		t.Errorf("Mean = %v, want %v", r.Mean, want)
	}
	if r.OverSegmented != 1 || r.UnderSegmented != 1 {
		t.Errorf("over/under = %d/%d, want 1/1", r.OverSegmented, r.UnderSegmented)
	}
	want := metrics.Buckets{Tiny: 1, Small: 1, Medium: 2, Large: 1, Huge: 1}
	if r.Buckets != want {
		t.Errorf("Buckets = %+v, want %+v", r.Buckets, want)
	}
	if r.Alert {
		t.Error("1/6 over-segmented should not alert at 30%")
	}
	if r.ByStrategy[internal.StrategyExplicitBreak] != 6 {
		t.Errorf("ByStrategy = %v", r.ByStrategy)
	}
}

func TestCompute_Alert(t *testing.T) {
	th := metrics.ThresholdsFrom(segment.DefaultConfig())
	r := metrics.Compute(units(10, 20, 30, 1000), th)
	if !r.Alert {
		t.Errorf("rate %.2f should alert", r.OverRate)
	}
	if r.OverRate != 0.75 {
		t.Errorf("OverRate = %v, want 0.75", r.OverRate)
	}
}

func TestCompute_Empty(t *testing.T) {
	r := metrics.Compute(nil, metrics.Thresholds{MinLength: 100, MaxParagraphSize: 2000, AlertThreshold: 0.3})
	if r.Count != 0 || r.Alert || r.Mean != 0 {
		t.Errorf("unexpected report for no units: %+v", r)
	}
}

func TestCompute_OddMedianAndOversize(t *testing.T) {
	us := units(100, 700, 3000)
	us[2].Oversize = true
	us[2].Strategy = internal.StrategySizeFallback
	r := metrics.Compute(us, metrics.ThresholdsFrom(segment.DefaultConfig()))
	if r.Median != 700 {
		t.Errorf("Median = %v, want 700", r.Median)
	}
	if r.Oversize != 1 || r.ByStrategy[internal.StrategySizeFallback] != 1 {
		t.Errorf("oversize/strategy counts wrong: %+v", r)
	}
}

func TestReport_LogAndText(t *testing.T) {
	r := metrics.Compute(units(10, 20, 30, 1000), metrics.ThresholdsFrom(segment.DefaultConfig()))

	var logBuf bytes.Buffer
	r.Log(slog.New(slog.NewTextHandler(&logBuf, nil)))
	if !strings.Contains(logBuf.String(), "over-segmentation alert") {
		t.Errorf("alert not logged: %s", logBuf.String())
	}

	var textBuf bytes.Buffer
	if err := r.WriteText(&textBuf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(textBuf.String(), "Units:              4") || !strings.Contains(textBuf.String(), "WARNING") {
		t.Errorf("unexpected text report:\n%s", textBuf.String())
	}
}
