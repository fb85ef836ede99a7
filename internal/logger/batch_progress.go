// Package logger provides the terminal progress display for the batch
// runner: one line per question, refreshed in place on a TTY, with a
// plain log fallback when stdout is piped.
package logger

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"
)

type queryState int

const (
	statePending queryState = iota
	stateRunning
	stateDone
	stateFailed
)

// queryRow is the display state for one question.
type queryRow struct {
	name     string
	question string
	state    queryState
	err      string
	started  time.Time
	finished time.Time
}

// BatchProgress refreshes one line per question in place using ANSI
// escape codes. Rows are keyed by the short names given at construction.
type BatchProgress struct {
	mu        sync.Mutex
	rows      []*queryRow
	index     map[string]int
	title     string
	startTime time.Time
	lineCount int
	rendered  bool
	ticker    *time.Ticker
	done      chan struct{}
	isTTY     bool
}

// NewBatchProgress creates a display with one pending row per name.
func NewBatchProgress(title string, names []string) *BatchProgress {
	bp := &BatchProgress{
		rows:      make([]*queryRow, len(names)),
		index:     make(map[string]int, len(names)),
		title:     title,
		startTime: time.Now(),
		done:      make(chan struct{}),
		isTTY:     isTerminal(),
	}
	for i, name := range names {
		bp.rows[i] = &queryRow{name: name}
		bp.index[name] = i
	}
	return bp
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Start begins the refresh loop. On a plain pipe it prints the title
// once and falls back to one log line per event.
func (bp *BatchProgress) Start() {
	if !bp.isTTY {
		fmt.Printf("\n%s\n", bp.title)
		return
	}

	fmt.Print(ansiHideCursor)
	bp.restoreCursorOnInterrupt()
	bp.render()

	bp.ticker = time.NewTicker(200 * time.Millisecond)
	go func() {
		for {
			select {
			case <-bp.ticker.C:
				bp.mu.Lock()
				bp.render()
				bp.mu.Unlock()
			case <-bp.done:
				return
			}
		}
	}()
}

// Stop halts the refresh loop and leaves the final frame on screen.
func (bp *BatchProgress) Stop() {
	if bp.ticker != nil {
		bp.ticker.Stop()
	}
	close(bp.done)

	if !bp.isTTY {
		return
	}
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.render()
	fmt.Print(ansiShowCursor)
	fmt.Println()
}

func (bp *BatchProgress) restoreCursorOnInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		fmt.Print(ansiShowCursor)
		os.Exit(130)
	}()
}

// StartQuery marks a row as running and attaches the full question text.
func (bp *BatchProgress) StartQuery(name, question string) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if i, ok := bp.index[name]; ok {
		bp.rows[i].state = stateRunning
		bp.rows[i].question = question
		bp.rows[i].started = time.Now()
	}
	if !bp.isTTY {
		fmt.Printf("  🔄 %s\n", name)
	}
}

// Complete marks a row as done.
func (bp *BatchProgress) Complete(name string) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	i, ok := bp.index[name]
	if !ok {
		return
	}
	bp.rows[i].state = stateDone
	bp.rows[i].finished = time.Now()
	if !bp.isTTY {
		fmt.Printf("  ✅ %s (%s)\n", name, formatDuration(bp.rows[i].finished.Sub(bp.rows[i].started)))
	}
}

// Fail marks a row as failed and keeps the error for the summary.
func (bp *BatchProgress) Fail(name string, err error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	i, ok := bp.index[name]
	if !ok {
		return
	}
	bp.rows[i].state = stateFailed
	bp.rows[i].finished = time.Now()
	if err != nil {
		bp.rows[i].err = err.Error()
	}
	if !bp.isTTY {
		fmt.Printf("  ❌ %s: %s\n", name, bp.rows[i].err)
	}
}

func (bp *BatchProgress) counts() (done, failed, running, pending int) {
	for _, r := range bp.rows {
		switch r.state {
		case stateDone:
			done++
		case stateFailed:
			failed++
		case stateRunning:
			running++
		case statePending:
			pending++
		}
	}
	return
}

// Summary renders the end-of-run report with per-failure errors.
func (bp *BatchProgress) Summary() string {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	done, failed, _, _ := bp.counts()
	total := time.Since(bp.startTime)

	var sb strings.Builder
	rule := strings.Repeat("━", 59)
	sb.WriteString("\n" + rule + "\n")
	sb.WriteString("📊 Batch Summary\n")
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("  Total:     %d queries\n", len(bp.rows)))
	sb.WriteString(fmt.Sprintf("  ✅ Done:    %d\n", done))
	sb.WriteString(fmt.Sprintf("  ❌ Failed:  %d\n", failed))
	sb.WriteString(fmt.Sprintf("  ⏱️  Time:    %s\n", formatDuration(total)))
	if done > 0 {
		sb.WriteString(fmt.Sprintf("  ⚡ Avg:     %s / query\n", formatDuration(total/time.Duration(done))))
	}

	if failed > 0 {
		sb.WriteString("\n  Failed queries:\n")
		for _, r := range bp.rows {
			if r.state == stateFailed {
				sb.WriteString(fmt.Sprintf("    - %s %s\n", pad(r.name, 25), truncate(r.err, 80)))
			}
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

const (
	ansiReset      = "\033[0m"
	ansiBold       = "\033[1m"
	ansiDim        = "\033[2m"
	ansiGreen      = "\033[32m"
	ansiRed        = "\033[31m"
	ansiYellow     = "\033[33m"
	ansiCyan       = "\033[36m"
	ansiBlue       = "\033[34m"
	ansiClearLine  = "\033[2K"
	ansiHideCursor = "\033[?25l"
	ansiShowCursor = "\033[?25h"
)

// render redraws every line in place. Caller holds mu.
func (bp *BatchProgress) render() {
	if bp.rendered && bp.lineCount > 0 {
		fmt.Printf("\033[%dA", bp.lineCount)
	}

	nameWidth := 15
	for _, r := range bp.rows {
		if n := len([]rune(r.name)); n > nameWidth {
			nameWidth = n
		}
	}

	lines := []string{ansiBold + bp.title + ansiReset, ""}
	for _, r := range bp.rows {
		lines = append(lines, bp.rowLine(r, nameWidth))
	}
	lines = append(lines, "", bp.overallLine())

	var out strings.Builder
	for _, line := range lines {
		out.WriteString(ansiClearLine)
		out.WriteString(line)
		out.WriteString("\n")
	}
	fmt.Print(out.String())

	bp.lineCount = len(lines)
	bp.rendered = true
}

func (bp *BatchProgress) rowLine(r *queryRow, nameWidth int) string {
	var icon, color string
	var elapsed time.Duration

	switch r.state {
	case statePending:
		icon, color = "⏳", ansiDim
	case stateRunning:
		elapsed = time.Since(r.started)
		icon, color = spinnerFrame(elapsed), ansiCyan
	case stateDone:
		elapsed = r.finished.Sub(r.started)
		icon, color = "✅", ansiGreen
	case stateFailed:
		elapsed = r.finished.Sub(r.started)
		icon, color = "❌", ansiRed
	}

	status := truncate(r.question, 44)
	if r.state == stateFailed && r.err != "" {
		status = truncate(r.err, 44)
	}

	timeStr := ""
	if r.state != statePending {
		timeStr = formatDuration(elapsed)
	}

	return fmt.Sprintf(" %s %s%s%s  %s%s%s %s",
		icon, color, pad(r.name, nameWidth), ansiReset,
		ansiDim, pad(status, 44), ansiReset, timeStr)
}

// overallLine is the bottom bar: completed-over-total with a naive ETA
// from the running average.
func (bp *BatchProgress) overallLine() string {
	done, failed, running, pending := bp.counts()
	total := len(bp.rows)
	finished := done + failed
	elapsed := time.Since(bp.startTime)

	eta := "calculating..."
	if finished > 0 {
		remaining := time.Duration(total-finished) * (elapsed / time.Duration(finished))
		eta = formatDuration(remaining)
	}

	percent := 0
	if total > 0 {
		percent = finished * 100 / total
	}

	return fmt.Sprintf(" %s%sOverall%s  %s %d/%d  ⏱️  %s  ETA %s  "+
		"(%s●%s %d running, %s●%s %d pending, %s●%s %d done, %s●%s %d fail)",
		ansiBold, ansiYellow, ansiReset,
		renderBar(percent, 30), finished, total,
		formatDuration(elapsed), eta,
		ansiCyan, ansiReset, running,
		ansiDim, ansiReset, pending,
		ansiGreen, ansiReset, done,
		ansiRed, ansiReset, failed,
	)
}

func renderBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := width * percent / 100
	return ansiBlue + strings.Repeat("█", filled) + ansiDim + strings.Repeat("░", width-filled) + ansiReset
}

// truncate shortens s to max runes, never splitting a multibyte rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// pad right-pads s to width runes.
func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// formatDuration renders a duration at whole-unit granularity; zero
// renders as "N/A".
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "N/A"
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func spinnerFrame(elapsed time.Duration) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[int(elapsed.Milliseconds()/100)%len(frames)]
}
