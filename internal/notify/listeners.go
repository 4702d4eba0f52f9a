package notify

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// LogListener writes one structured log record per event. Completion of a
// unit is logged once even if the event is replayed or delivered twice.
type LogListener struct {
	logger *slog.Logger
	seen   map[int]bool
}

// NewLogListener returns a LogListener; a nil logger means slog.Default().
func NewLogListener(logger *slog.Logger) *LogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener{logger: logger, seen: make(map[int]bool)}
}

func (l *LogListener) Handle(ev Event) {
	log := l.logger.With("job_id", ev.JobID)
	switch ev.Kind {
	case UnitClaimed:
		log.Debug("unit claimed", "unit", ev.Index, "attempt", ev.Attempt)
	case UnitChunk:
		// too chatty to log
	case UnitCompleted:
		if l.seen[ev.Index] {
			return
		}
		l.seen[ev.Index] = true
		if ev.Replayed {
			log.Debug("unit already translated", "unit", ev.Index)
			return
		}
		log.Info("unit translated", "unit", ev.Index, "attempt", ev.Attempt,
			"completed", ev.Completed, "total", ev.Total)
	case UnitRequeued:
		log.Warn("unit requeued", "unit", ev.Index, "attempt", ev.Attempt,
			"error", ev.Err, "retry_at", ev.RetryAt.Format("15:04:05"))
	case UnitFailed:
		log.Error("unit failed permanently", "unit", ev.Index, "attempt", ev.Attempt, "error", ev.Err)
	case JobFinished:
		log.Info("job finished", "completed", ev.Completed, "failed", ev.Failed, "total", ev.Total)
	}
}

var (
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFD7"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F")).Bold(true)
)

// ProgressListener draws a single-line progress bar. Counts are derived from
// the set of unit indices seen, so duplicate or replayed events never
// over-count.
type ProgressListener struct {
	w         io.Writer
	bar       progress.Model
	total     int
	completed map[int]bool
	failed    map[int]bool
}

// NewProgressListener returns a ProgressListener writing to w.
func NewProgressListener(w io.Writer) *ProgressListener {
	return &ProgressListener{
		w:         w,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		completed: make(map[int]bool),
		failed:    make(map[int]bool),
	}
}

func (p *ProgressListener) Handle(ev Event) {
	if ev.Total > 0 {
		p.total = ev.Total
	}
	switch ev.Kind {
	case UnitCompleted:
		p.completed[ev.Index] = true
		delete(p.failed, ev.Index)
	case UnitFailed:
		p.failed[ev.Index] = true
	case UnitClaimed, UnitRequeued:
	case JobFinished:
		p.render()
		fmt.Fprintln(p.w)
		if len(p.failed) == 0 && len(p.completed) == p.total {
			fmt.Fprintln(p.w, completedStyle.Render("✓ Translated"))
		} else {
			fmt.Fprintln(p.w, errorStyle.Render(fmt.Sprintf("✗ %d of %d units not translated", p.total-len(p.completed), p.total)))
		}
		return
	default:
		return
	}
	p.render()
}

// Completed is the number of distinct units seen completed.
func (p *ProgressListener) Completed() int { return len(p.completed) }

func (p *ProgressListener) render() {
	var pct float64
	if p.total > 0 {
		pct = float64(len(p.completed)) / float64(p.total)
	}
	status := statusStyle.Render("[translating]")
	counts := fmt.Sprintf("%d/%d units", len(p.completed), p.total)
	if n := len(p.failed); n > 0 {
		counts += errorStyle.Render(fmt.Sprintf(" %d failed", n))
	}
	line := strings.Join([]string{status, p.bar.ViewAs(pct), counts}, " ")
	fmt.Fprintf(p.w, "\r%s", line)
}
