package subtitles

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"

	"github.com/plexcache/plexcache/pkg/logger"
)

// DefaultExtensions are the sidecar subtitle formats recognised when the
// config does not override them.
var DefaultExtensions = []string{".srt", ".vtt", ".sbv", ".sub", ".idx"}

// Resolver discovers sidecar subtitle files living alongside media files.
type Resolver struct {
	extensions []string

	log *logrus.Entry
}

func New(extensions []string) *Resolver {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	return &Resolver{
		extensions: extensions,
		log:        logger.GetLogger("subtitles"),
	}
}

// Resolve returns the media paths followed by every discovered companion
// subtitle. Paths in skip and repeats within one call are not scanned.
// Directory read failures are non-fatal and yield zero companions.
func (r *Resolver) Resolve(mediaPaths []string, skip *strset.Set) []string {
	if skip == nil {
		skip = strset.New()
	}

	processed := strset.New()
	all := make([]string, len(mediaPaths))
	copy(all, mediaPaths)

	for _, file := range mediaPaths {
		if skip.Has(file) || processed.Has(file) {
			continue
		}
		processed.Add(file)

		companions := r.findCompanions(filepath.Dir(file), file)
		for _, companion := range companions {
			r.log.Infof("Subtitle found: %q", companion)
		}
		all = append(all, companions...)
	}

	return all
}

func (r *Resolver) findCompanions(dir string, file string) []string {
	base := filepath.Base(file)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	entries, err := os.ReadDir(dir)
	if err != nil {
		r.log.WithError(err).Errorf("Failed to list directory %q", dir)
		return nil
	}

	var companions []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == base {
			continue
		}

		if !strings.HasPrefix(entry.Name(), name) {
			continue
		}

		if r.hasSubtitleExtension(entry.Name()) {
			companions = append(companions, filepath.Join(dir, entry.Name()))
		}
	}

	return companions
}

func (r *Resolver) hasSubtitleExtension(name string) bool {
	for _, ext := range r.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
