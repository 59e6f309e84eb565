package cli

// Test Plan for CLI output:
// - formatNumber inserts thousands separators
// - CLIProgressReporter survives concurrent OnArtifactRead calls and prints a summary
// - A quiet reporter writes nothing
// - version prints the build information

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/class-shadow/internal/pipeline"
)

// Test: formatNumber inserts thousands separators
func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.in), "formatNumber(%d)", tt.in)
	}
}

// Test: CLIProgressReporter survives concurrent OnArtifactRead calls and prints a summary
func TestCLIProgressReporter_Concurrent(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	r := NewCLIProgressReporter(&out, false)

	r.OnReadStart(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				r.OnArtifactRead("Foo.class")
			}
		}()
	}
	wg.Wait()

	r.OnBuildComplete(1500, 2)
	r.OnComplete(&pipeline.Report{
		StartedAt: time.Now(),
		Packages:  3,
		Classes:   1500,
		Fields:    4200,
		Skipped:   1,
		Dangling:  2,
	})

	text := out.String()
	assert.Contains(t, text, "Symbol table built: 1,500 classes, 2 diagnostics")
	assert.Contains(t, text, "Shadow written: 3 packages, 1,500 classes, 4,200 fields")
	assert.Contains(t, text, "Skipped artifacts: 1")
	assert.Contains(t, text, "Dangling references: 2")
}

// Test: A quiet reporter writes nothing
func TestCLIProgressReporter_Quiet(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	r := NewCLIProgressReporter(&out, true)
	r.OnReadStart(1)
	r.OnArtifactRead("Foo.class")
	r.OnBuildComplete(1, 0)
	r.OnComplete(&pipeline.Report{StartedAt: time.Now()})

	assert.Empty(t, out.String())
}

// Test: version prints the build information
func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Contains(t, out.String(), "Shadow "+Version)
	assert.Contains(t, out.String(), "Git commit: "+GitCommit)
}
