package mediacache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"

	"github.com/plexcache/plexcache/pkg/logger"
)

// Store persists one fetched media set as JSON so expensive server queries
// can be skipped between runs.
type Store struct {
	path string

	log *logrus.Entry
}

type cacheFile struct {
	Media []string `json:"media"`
	// seconds since epoch, fractional
	Timestamp float64 `json:"timestamp"`
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		log:  logger.GetLogger("mediacache"),
	}
}

// Load reads the cached media set. Older cache files were a bare JSON list
// of paths; those still load, with a zero timestamp. A missing file is not
// an error and yields an empty set.
func (s *Store) Load() (*strset.Set, time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return strset.New(), time.Time{}, nil
		}
		return nil, time.Time{}, errors.Wrapf(err, "failed reading cache file %q", s.path)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		var legacy []string
		if legacyErr := json.Unmarshal(data, &legacy); legacyErr != nil {
			return nil, time.Time{}, errors.Wrapf(err, "failed decoding cache file %q", s.path)
		}

		s.log.Debugf("Loaded legacy cache file: %q", s.path)
		return strset.New(legacy...), time.Time{}, nil
	}

	sec := int64(cf.Timestamp)
	nsec := int64((cf.Timestamp - float64(sec)) * float64(time.Second))

	return strset.New(cf.Media...), time.Unix(sec, nsec), nil
}

// Save overwrites the cache file with the given media set.
func (s *Store) Save(media []string, fetchedAt time.Time) error {
	if media == nil {
		media = []string{}
	}

	data, err := json.Marshal(cacheFile{
		Media:     media,
		Timestamp: float64(fetchedAt.UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return errors.Wrap(err, "failed encoding cache file")
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed writing cache file %q", s.path)
	}

	return nil
}

// Expired reports whether the cache file is older than maxAge, judged by
// file modification time. A missing file is expired.
func (s *Store) Expired(maxAge time.Duration) bool {
	info, err := os.Stat(s.path)
	if err != nil {
		return true
	}

	return time.Since(info.ModTime()) > maxAge
}
