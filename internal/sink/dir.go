package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvp-joe/class-shadow/internal/stub"
)

// Dir writes one file per package into a directory. Files are staged in a
// sibling directory and swapped in with renames, so readers see either the
// previous pass or the new one.
type Dir struct {
	root   string
	rename func(oldpath, newpath string) error
}

// NewDir creates a directory sink rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root, rename: os.Rename}
}

// Root returns the output directory.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) Emit(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parent := filepath.Dir(d.root)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create output parent %s: %w", parent, err)
	}

	staging, err := os.MkdirTemp(parent, ".stubs-staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	for _, pu := range b.Packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writePackage(filepath.Join(staging, stub.FileName(pu.Package)), pu); err != nil {
			return err
		}
	}

	// Last point where cancellation can still abandon the pass.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.swap(staging); err != nil {
		return err
	}
	committed = true
	return nil
}

// swap replaces root with staging, restoring the previous output if the
// final rename fails.
func (d *Dir) swap(staging string) error {
	backup := staging + ".old"
	hadPrevious := false

	if _, err := os.Stat(d.root); err == nil {
		if err := d.rename(d.root, backup); err != nil {
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
		hadPrevious = true
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat output %s: %w", d.root, err)
	}

	if err := d.rename(staging, d.root); err != nil {
		err = fmt.Errorf("failed to move staged output into place: %w", err)
		if hadPrevious {
			if rerr := d.rename(backup, d.root); rerr != nil {
				err = errors.Join(err, fmt.Errorf("previous output left at %s: %w", backup, rerr))
			}
		}
		return err
	}

	if hadPrevious {
		os.RemoveAll(backup)
	}
	return nil
}

func writePackage(path string, pu stub.PackageUnit) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := stub.Render(f, pu); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
