package paths

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/plexcache/plexcache/pkg/logger"
)

/* Structs */

type Path struct {
	Path         string
	FileName     string
	Directory    string
	IsDir        bool
	Size         int64
	ModifiedTime time.Time
}

/* Types */

type callbackAllowed func(string) *string

/* Vars */

var (
	log = logger.GetLogger("paths")
)

/* Public */

// InFolder walks folder and returns every entry plus the total file size.
// The walk is parallel; result order is not stable.
func InFolder(folder string, includeFiles bool, includeFolders bool, acceptFn callbackAllowed) ([]Path, uint64) {
	var paths []Path
	var size uint64
	var mutex sync.Mutex

	conf := fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(&conf, folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).Errorf("Failed walking %q", path)
			return nil
		}

		if path == folder {
			return nil
		}

		if !includeFiles && !d.IsDir() {
			log.Tracef("Skipping file: %s", path)
			return nil
		}

		if !includeFolders && d.IsDir() {
			log.Tracef("Skipping folder: %s", path)
			return nil
		}

		finalPath := path
		if acceptFn != nil {
			acceptedPath := acceptFn(path)
			if acceptedPath == nil {
				log.Tracef("Skipping rejected path: %s", path)
				return nil
			}
			finalPath = *acceptedPath
		}

		info, err := d.Info()
		if err != nil {
			log.WithError(err).Errorf("Failed to get file info for %s", path)
			return nil
		}

		foundPath := Path{
			Path:         finalPath,
			FileName:     info.Name(),
			Directory:    filepath.Dir(path),
			IsDir:        info.IsDir(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime(),
		}

		mutex.Lock()
		paths = append(paths, foundPath)
		size += uint64(info.Size())
		mutex.Unlock()

		return nil
	})
	if err != nil {
		log.WithError(err).Errorf("Failed to retrieve paths from %s", folder)
	}

	return paths, size
}

// IsIgnored reports whether the path matches any ignore pattern,
// case-insensitively.
func IsIgnored(path string, patterns []string) bool {
	lowered := strings.ToLower(path)
	for _, pattern := range patterns {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// IsDirEmpty reports whether the directory has no entries.
func IsDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}
