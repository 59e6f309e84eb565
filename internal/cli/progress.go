package cli

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/mvp-joe/class-shadow/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter implements pipeline.ProgressReporter with a progress bar.
// OnArtifactRead arrives from reader goroutines, so bar access is locked.
type CLIProgressReporter struct {
	quiet bool
	out   io.Writer

	mu      sync.Mutex
	readBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet: quiet,
		out:   out,
	}
}

func (c *CLIProgressReporter) OnReadStart(total int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readBar != nil {
		c.readBar.Finish()
	}
	c.readBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Reading artifacts"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("artifacts/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnArtifactRead(origin string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readBar != nil {
		c.readBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnBuildComplete(classes, diagnostics int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	if c.readBar != nil {
		c.readBar.Finish()
		c.readBar = nil
	}
	c.mu.Unlock()

	fmt.Fprintf(c.out, "✓ Symbol table built: %s classes, %s diagnostics\n",
		formatNumber(classes), formatNumber(diagnostics))
}

func (c *CLIProgressReporter) OnComplete(report *pipeline.Report) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "✓ Shadow written: %s packages, %s classes, %s fields in %.1fs\n",
		formatNumber(report.Packages),
		formatNumber(report.Classes),
		formatNumber(report.Fields),
		time.Since(report.StartedAt).Seconds())
	if report.Skipped > 0 {
		fmt.Fprintf(c.out, "  Skipped artifacts: %s\n", formatNumber(report.Skipped))
	}
	if report.Dangling > 0 {
		fmt.Fprintf(c.out, "  Dangling references: %s\n", formatNumber(report.Dangling))
	}
}

// formatNumber renders n with thousands separators.
func formatNumber(n int) string {
	str := strconv.Itoa(n)
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if len(str) <= 3 {
		return str
	}

	var result []byte
	for i := range len(str) {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, str[i])
	}
	return string(result)
}
