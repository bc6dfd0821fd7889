package tiers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Tier identifies one side of the two-tier layout.
type Tier int

const (
	Unknown Tier = iota
	Cache
	Array
)

func (t Tier) String() string {
	switch t {
	case Cache:
		return "cache"
	case Array:
		return "array"
	}
	return "unknown"
}

// ErrUnknownTier signals a caller bug: a destination outside {cache, array}.
var ErrUnknownTier = errors.New("unknown destination tier")

// Unraid exposes the array both through the cache-backed user share and
// directly; writes meant to land on the array must bypass the share.
const (
	userShareRoot  = "/mnt/user/"
	directDiskRoot = "/mnt/user0/"
)

// Mode carries the run-wide switches threaded into the decider and mover.
type Mode struct {
	// DryRun disables all filesystem mutation in the mover.
	DryRun bool
	// StorageManager is true when an OS-level tiering mover is present
	// (Unraid); enables the exclusion artifact and array-root rewriting.
	StorageManager bool
}

// Layout derives the physical location of a file on either tier.
type Layout struct {
	// RealSource is the array-tier media root.
	RealSource string
	// CacheDir is the cache-tier root mirroring RealSource's structure.
	CacheDir string
	// StorageManager mirrors Mode.StorageManager for path math.
	StorageManager bool
}

// CachePath maps a real-source path to its cache-tier equivalent.
func (l *Layout) CachePath(file string) string {
	dir := strings.Replace(filepath.Dir(file), strings.TrimSuffix(l.RealSource, "/"), strings.TrimSuffix(l.CacheDir, "/"), 1)
	return filepath.Join(dir, filepath.Base(file))
}

// ArrayPath maps a real-source path to the location array-bound writes and
// existence checks must use. Without a storage manager the user path is
// already the array path.
func (l *Layout) ArrayPath(file string) string {
	if l.StorageManager {
		return strings.Replace(file, userShareRoot, directDiskRoot, 1)
	}
	return file
}

// Locate reports which tier currently holds the file.
func (l *Layout) Locate(file string) Tier {
	if fileExists(l.CachePath(file)) {
		return Cache
	}
	if fileExists(l.ArrayPath(file)) {
		return Array
	}
	return Unknown
}

// DetectStorageManager reports whether the Unraid direct-disk root exists.
func DetectStorageManager() bool {
	info, err := os.Stat(directDiskRoot)
	return err == nil && info.IsDir()
}

// DetectDocker reports whether the process runs inside a container.
func DetectDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
