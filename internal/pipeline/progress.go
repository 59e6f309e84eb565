package pipeline

// ProgressReporter provides callbacks for reporting pass progress.
// OnArtifactRead is called concurrently from reader goroutines.
type ProgressReporter interface {
	// OnReadStart is called before any artifact is read.
	OnReadStart(total int)

	// OnArtifactRead is called after each source is read, successfully or not.
	OnArtifactRead(origin string)

	// OnBuildComplete is called once the namespace is final.
	OnBuildComplete(classes, diagnostics int)

	// OnComplete is called after the sink accepted the pass.
	OnComplete(report *Report)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnReadStart(total int)                    {}
func (n *NoOpProgressReporter) OnArtifactRead(origin string)             {}
func (n *NoOpProgressReporter) OnBuildComplete(classes, diagnostics int) {}
func (n *NoOpProgressReporter) OnComplete(report *Report)                {}
