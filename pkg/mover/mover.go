package mover

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"

	"github.com/plexcache/plexcache/pkg/logger"
	"github.com/plexcache/plexcache/pkg/tiers"
)

// Operation is one planned file move.
type Operation struct {
	Source  string
	DestDir string
}

// Mover executes batches of tier-to-tier moves with a bounded worker pool
// per destination tier.
type Mover struct {
	layout *tiers.Layout
	mode   tiers.Mode

	log *logrus.Entry
}

func New(layout *tiers.Layout, mode tiers.Mode) *Mover {
	return &Mover{
		layout: layout,
		mode:   mode,
		log:    logger.GetLogger("mover"),
	}
}

// Move relocates files to destination and returns the number of failed
// moves. Individual failures never abort the batch. In dry-run mode the
// planned operations are logged and nothing on disk changes.
func (m *Mover) Move(files []string, destination tiers.Tier, cacheWorkers int, arrayWorkers int) (int, error) {
	ops, err := m.buildOperations(files, destination)
	if err != nil {
		return 0, err
	}

	if len(ops) == 0 {
		m.log.Debugf("No moves required for %s", destination)
		return 0, nil
	}

	if m.mode.DryRun {
		for _, op := range ops {
			m.log.Infof("Dry run, would move %q to %q", op.Source, op.DestDir)
		}
		return 0, nil
	}

	workers := arrayWorkers
	if destination == tiers.Cache {
		workers = cacheWorkers
	}
	if workers < 1 {
		workers = 1
	}

	m.log.Infof("Moving %d file(s) to %s with %d worker(s)", len(ops), destination, workers)

	var failures atomic.Uint32
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, op := range ops {
		wg.Add(1)
		sem <- struct{}{}

		go func(op Operation) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := m.moveOne(op); err != nil {
				m.log.WithError(err).Errorf("Failed moving %q to %q", op.Source, op.DestDir)
				failures.Add(1)
				return
			}

			m.log.Infof("Moved %q to %q", op.Source, op.DestDir)
		}(op)
	}

	wg.Wait()

	return int(failures.Load()), nil
}

// buildOperations plans the batch: duplicates collapse, and files whose
// current placement makes the move moot are skipped. Destination
// directories are ensured for every planned file, skipped or not, so the
// tree structure stays consistent for future runs.
func (m *Mover) buildOperations(files []string, destination tiers.Tier) ([]Operation, error) {
	if destination != tiers.Cache && destination != tiers.Array {
		return nil, errors.Wrapf(tiers.ErrUnknownTier, "%q", destination)
	}

	seen := strset.New()
	ops := make([]Operation, 0, len(files))

	for _, file := range files {
		if seen.Has(file) {
			continue
		}
		seen.Add(file)

		cachePath := m.layout.CachePath(file)

		var source, destDir string
		switch destination {
		case tiers.Array:
			source = cachePath
			destDir = filepath.Dir(m.layout.ArrayPath(file))
		case tiers.Cache:
			source = m.layout.ArrayPath(file)
			destDir = filepath.Dir(cachePath)
		}

		if !m.mode.DryRun {
			if err := m.ensureDirectory(destDir, source); err != nil {
				m.log.WithError(err).Errorf("Failed ensuring directory for %q", file)
			}
		}

		switch destination {
		case tiers.Array:
			// nothing to demote when no cache copy exists
			if !fileExists(cachePath) {
				m.log.Debugf("Skipping %q, no cache copy to move", file)
				continue
			}
		case tiers.Cache:
			// promotion already satisfied
			if fileExists(cachePath) {
				m.log.Debugf("Skipping %q, cache copy already present", file)
				continue
			}
		}

		ops = append(ops, Operation{Source: source, DestDir: destDir})
	}

	return ops, nil
}

func (m *Mover) moveOne(op Operation) error {
	if err := m.ensureDirectory(op.DestDir, op.Source); err != nil {
		return err
	}

	return moveFile(op.Source, filepath.Join(op.DestDir, filepath.Base(op.Source)))
}

// ensureDirectory creates the destination tree, mirroring mode and
// ownership from the file being moved so the media server keeps access.
func (m *Mover) ensureDirectory(dir string, source string) error {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return nil
	}

	mode := os.FileMode(0o755)
	uid, gid := -1, -1

	if info, err := os.Stat(source); err == nil {
		mode = info.Mode().Perm() | 0o111
		if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			uid, gid = int(stat.Uid), int(stat.Gid)
		}
	}

	if err := os.MkdirAll(dir, mode); err != nil {
		return errors.Wrapf(err, "failed creating directory %q", dir)
	}

	// MkdirAll is subject to umask
	if err := os.Chmod(dir, mode); err != nil {
		m.log.WithError(err).Debugf("Failed setting mode on %q", dir)
	}

	if uid >= 0 {
		if err := os.Chown(dir, uid, gid); err != nil {
			m.log.WithError(err).Debugf("Failed setting ownership on %q", dir)
		}
	}

	return nil
}

// moveFile renames when possible and falls back to copy-then-remove for
// cross-device moves, preserving mode, ownership and timestamps.
func moveFile(source string, dest string) error {
	err := os.Rename(source, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || linkErr.Err != syscall.EXDEV {
		return errors.Wrapf(err, "failed renaming %q", source)
	}

	if err := copyFile(source, dest); err != nil {
		return err
	}

	return errors.Wrapf(os.Remove(source), "failed removing %q after copy", source)
}

func copyFile(source string, dest string) error {
	info, err := os.Stat(source)
	if err != nil {
		return errors.Wrapf(err, "failed reading %q", source)
	}

	in, err := os.Open(source)
	if err != nil {
		return errors.Wrapf(err, "failed opening %q", source)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "failed creating %q", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return errors.Wrapf(err, "failed copying to %q", dest)
	}

	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "failed closing %q", dest)
	}

	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		_ = os.Chown(dest, int(stat.Uid), int(stat.Gid))
	}
	_ = os.Chtimes(dest, info.ModTime(), info.ModTime())

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
