package placement

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"

	"github.com/plexcache/plexcache/pkg/logger"
	"github.com/plexcache/plexcache/pkg/tiers"
)

// Decider filters a candidate batch down to the files that actually need
// to move to the destination tier. As a side effect it reclaims redundant
// copies immediately and, when a storage manager is present, rewrites the
// mover-exclusion artifact with the cache-equivalent path of every input.
type Decider struct {
	layout      *tiers.Layout
	mode        tiers.Mode
	excludePath string

	log *logrus.Entry
}

func New(layout *tiers.Layout, mode tiers.Mode, excludePath string) *Decider {
	return &Decider{
		layout:      layout,
		mode:        mode,
		excludePath: excludePath,
		log:         logger.GetLogger("placement"),
	}
}

// Reclaim is a redundant copy removed during a decision pass.
type Reclaim struct {
	Path string
	Tier tiers.Tier
	Size int64
}

// Decide returns the subset of files that must move to destination, plus
// the redundant copies reclaimed along the way. cacheBound is the full set
// of paths already destined for the cache tier; during an array pass those
// are retained on cache even when a stray array copy exists. skip holds
// actively playing files, excluded outright.
func (d *Decider) Decide(files []string, destination tiers.Tier, cacheBound *strset.Set, skip *strset.Set) ([]string, []Reclaim, error) {
	if destination != tiers.Cache && destination != tiers.Array {
		return nil, nil, errors.Wrapf(tiers.ErrUnknownTier, "%q", destination)
	}

	if cacheBound == nil {
		cacheBound = strset.New()
	}
	if skip == nil {
		skip = strset.New()
	}

	d.log.Debugf("Filtering %d media files for %s", len(files), destination)

	processed := strset.New()
	selected := make([]string, 0, len(files))
	excluded := make([]string, 0, len(files))
	var reclaimed []Reclaim

	for _, file := range files {
		if skip.Has(file) || processed.Has(file) {
			continue
		}
		processed.Add(file)

		cachePath := d.layout.CachePath(file)
		excluded = append(excluded, cachePath)

		switch destination {
		case tiers.Array:
			move, reclaim := d.shouldMoveToArray(file, cachePath, cacheBound)
			if reclaim != nil {
				reclaimed = append(reclaimed, *reclaim)
			}
			if move {
				d.log.Infof("Adding file to array batch: %q", file)
				selected = append(selected, file)
			}
		case tiers.Cache:
			move, reclaim := d.shouldMoveToCache(file, cachePath)
			if reclaim != nil {
				reclaimed = append(reclaimed, *reclaim)
			}
			if move {
				d.log.Infof("Adding file to cache batch: %q", file)
				selected = append(selected, file)
			}
		}
	}

	if d.mode.StorageManager {
		if err := d.writeExclusions(excluded); err != nil {
			return nil, nil, errors.Wrap(err, "failed writing mover exclusion list")
		}
	}

	return selected, reclaimed, nil
}

func (d *Decider) shouldMoveToArray(file string, cachePath string, cacheBound *strset.Set) (bool, *Reclaim) {
	// a concurrent cache-bound decision wins, even over an existing
	// array copy
	if cacheBound.Has(file) {
		return false, nil
	}

	arrayPath := d.layout.ArrayPath(file)

	if fileExists(arrayPath) {
		// array copy already present; reclaim the stale cache copy
		return false, d.reclaim(cachePath, tiers.Cache)
	}

	return true, nil
}

func (d *Decider) shouldMoveToCache(file string, cachePath string) (bool, *Reclaim) {
	arrayPath := d.layout.ArrayPath(file)

	if fileExists(cachePath) && fileExists(arrayPath) {
		// cache placement already satisfied; reclaim the array copy
		return false, d.reclaim(arrayPath, tiers.Array)
	}

	return !fileExists(cachePath), nil
}

// reclaim removes a redundant copy and reports it for notifications.
func (d *Decider) reclaim(path string, tier tiers.Tier) *Reclaim {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	if err := os.Remove(path); err != nil {
		d.log.WithError(err).Errorf("Failed removing %s copy: %q", tier, path)
		return nil
	}

	d.log.Infof("Removed %s copy: %q", tier, path)
	return &Reclaim{Path: path, Tier: tier, Size: info.Size()}
}

// writeExclusions overwrites the artifact consumed by the OS storage
// mover: one absolute path per line, no header.
func (d *Decider) writeExclusions(cachePaths []string) error {
	data := strings.Join(cachePaths, "\n")
	if len(cachePaths) > 0 {
		data += "\n"
	}

	return os.WriteFile(d.excludePath, []byte(data), 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
