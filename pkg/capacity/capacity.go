package capacity

import (
	"os"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/plexcache/plexcache/pkg/logger"
)

// ErrInsufficientSpace is returned when a batch does not fit on the
// destination tier. Fatal in normal runs, a warning in dry runs.
var ErrInsufficientSpace = errors.New("not enough free space on destination")

// Guard sizes move batches and verifies the destination can hold them.
type Guard struct {
	log *logrus.Entry
}

func New() *Guard {
	return &Guard{log: logger.GetLogger("capacity")}
}

// SizeBatch sums the on-disk size of the batch. Files that vanished
// between decision and sizing are skipped.
func (g *Guard) SizeBatch(files []string) uint64 {
	var total uint64

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			g.log.WithError(err).Debugf("Skipping vanished file while sizing: %q", file)
			continue
		}
		total += uint64(info.Size())
	}

	return total
}

// FreeSpace reports the available bytes on the filesystem holding root.
func (g *Guard) FreeSpace(root string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		return 0, errors.Wrapf(err, "failed reading free space for %q", root)
	}

	return stat.Bavail * uint64(stat.Bsize), nil
}

// Verify enforces the capacity policy for a batch.
func (g *Guard) Verify(totalBytes uint64, freeBytes uint64) error {
	if totalBytes > freeBytes {
		return errors.Wrapf(ErrInsufficientSpace, "need %s, have %s",
			humanize.IBytes(totalBytes), humanize.IBytes(freeBytes))
	}

	return nil
}
