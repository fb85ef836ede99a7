package logger

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummaryCountsOutcomes(t *testing.T) {
	bp := NewBatchProgress("batch", []string{"q01", "q02", "q03"})
	for _, name := range []string{"q01", "q02", "q03"} {
		bp.StartQuery(name, "question for "+name)
	}
	bp.Complete("q01")
	bp.Complete("q03")
	bp.Fail("q02", errors.New("no such column: wealth"))

	out := bp.Summary()
	assert.Contains(t, out, "Total:     3 queries")
	assert.Contains(t, out, "Done:    2")
	assert.Contains(t, out, "Failed:  1")
	assert.Contains(t, out, "Failed queries:")
	assert.Contains(t, out, "q02")
	assert.Contains(t, out, "no such column: wealth")
}

func TestSummaryOmitsFailureSectionWhenClean(t *testing.T) {
	bp := NewBatchProgress("batch", []string{"q01"})
	bp.StartQuery("q01", "show all branches")
	bp.Complete("q01")

	out := bp.Summary()
	assert.NotContains(t, out, "Failed queries:")
}

func TestUnknownRowNamesAreIgnored(t *testing.T) {
	bp := NewBatchProgress("batch", []string{"q01"})
	bp.StartQuery("missing", "anything")
	bp.Complete("missing")
	bp.Fail("missing", errors.New("x"))

	done, failed, running, pending := bp.counts()
	assert.Zero(t, done)
	assert.Zero(t, failed)
	assert.Zero(t, running)
	assert.Equal(t, 1, pending)
}

func TestTruncatePreservesRunes(t *testing.T) {
	long := strings.Repeat("残高", 40)
	short := truncate(long, 20)
	assert.True(t, utf8.ValidString(short))
	assert.Len(t, []rune(short), 20)
	assert.True(t, strings.HasSuffix(short, "..."))

	assert.Equal(t, "ok", truncate("ok", 20))
}

func TestPadCountsRunes(t *testing.T) {
	assert.Equal(t, "残高  ", pad("残高", 4))
	assert.Equal(t, "abcdef", pad("abcdef", 4))
}

func TestRenderBarClampsPercent(t *testing.T) {
	full := renderBar(150, 10)
	assert.Equal(t, 10, strings.Count(full, "█"))
	assert.Zero(t, strings.Count(full, "░"))

	empty := renderBar(-5, 10)
	assert.Zero(t, strings.Count(empty, "█"))
	assert.Equal(t, 10, strings.Count(empty, "░"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "N/A", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "1m30s", formatDuration(90*time.Second))
	assert.Equal(t, "2h5m", formatDuration(2*time.Hour+5*time.Minute))
}
