package watcher

import "context"

// FileWatcher monitors library inputs for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching, calling callback with debounced changed paths.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// PassFunc runs one extraction pass. changed lists the paths that triggered it.
type PassFunc func(ctx context.Context, changed []string) error
