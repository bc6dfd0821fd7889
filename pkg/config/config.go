package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type PlexConfig struct {
	URL           string `koanf:"url"`
	Token         string `koanf:"token"`
	ValidSections []int  `koanf:"valid_sections"`
	// NumberEpisodes is how many upcoming episodes of an on-deck show
	// are cached alongside the on-deck episode itself.
	NumberEpisodes int `koanf:"number_episodes"`
	DaysToMonitor  int `koanf:"days_to_monitor"`
}

type PathsConfig struct {
	// PlexSource is the media root as the Plex server reports it.
	PlexSource string `koanf:"plex_source"`
	// RealSource is the same root on the local filesystem (array tier).
	RealSource string `koanf:"real_source"`
	// CacheDir is the fast-tier root mirroring RealSource's layout.
	CacheDir     string   `koanf:"cache_dir"`
	ScriptFolder string   `koanf:"script_folder"`
	PlexFolders  []string `koanf:"plex_library_folders"`
	RealFolders  []string `koanf:"real_library_folders"`
}

type CacheConfig struct {
	WatchlistToggle      bool `koanf:"watchlist_toggle"`
	WatchlistEpisodes    int  `koanf:"watchlist_episodes"`
	WatchlistCacheExpiry int  `koanf:"watchlist_cache_expiry"`
	WatchedCacheExpiry   int  `koanf:"watched_cache_expiry"`
	WatchedMove          bool `koanf:"watched_move"`
}

type PerformanceConfig struct {
	MaxConcurrentMovesArray int `koanf:"max_concurrent_moves_array"`
	MaxConcurrentMovesCache int `koanf:"max_concurrent_moves_cache"`
	RetryLimit              int `koanf:"retry_limit"`
	Delay                   int `koanf:"delay"`
}

type FiltersConfig struct {
	// Skip expressions are evaluated against each candidate file;
	// a match excludes the file from caching.
	Skip []string `koanf:"skip"`
}

type NotificationsConfig struct {
	Detailed     bool                `koanf:"detailed"`
	SkipEmptyRun bool                `koanf:"skip_empty_run"`
	Service      NotificationService `koanf:"service"`
}

type NotificationService struct {
	Discord string `koanf:"discord"`
}

type SubtitlesConfig struct {
	Extensions []string `koanf:"extensions"`
}

type Configuration struct {
	Plex                PlexConfig          `koanf:"plex"`
	Paths               PathsConfig         `koanf:"paths"`
	Cache               CacheConfig         `koanf:"cache"`
	Performance         PerformanceConfig   `koanf:"performance"`
	Filters             FiltersConfig       `koanf:"filters"`
	Notifications       NotificationsConfig `koanf:"notifications"`
	Subtitles           SubtitlesConfig     `koanf:"subtitles"`
	ExitIfActiveSession bool                `koanf:"exit_if_active_session"`
}

var (
	// Config is the active configuration, set by Init
	Config *Configuration

	k = koanf.New(".")
)

func newDefaults() Configuration {
	return Configuration{
		Plex: PlexConfig{
			NumberEpisodes: 10,
			DaysToMonitor:  183,
		},
		Cache: CacheConfig{
			WatchlistToggle:      true,
			WatchlistEpisodes:    5,
			WatchlistCacheExpiry: 48,
			WatchedCacheExpiry:   48,
			WatchedMove:          true,
		},
		Performance: PerformanceConfig{
			MaxConcurrentMovesArray: 2,
			MaxConcurrentMovesCache: 5,
			RetryLimit:              3,
			Delay:                   5,
		},
	}
}

// GetDefaultConfigDirectory prefers a config file sitting in the working
// directory, falling back to the user's config dir.
func GetDefaultConfigDirectory(app string, configFile string) string {
	if cwd, err := os.Getwd(); err == nil {
		if _, err := os.Stat(filepath.Join(cwd, configFile)); err == nil {
			return cwd
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}

	return "."
}

// Init loads and validates the configuration file.
func Init(configFilePath string) error {
	if _, err := os.Stat(configFilePath); err != nil {
		return errors.Wrapf(err, "config file not found: %q", configFilePath)
	}

	k = koanf.New(".")

	if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
		return errors.Wrap(err, "failed parsing config file")
	}

	cfg := newDefaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return errors.Wrap(err, "failed unmarshalling config")
	}

	if err := cfg.validate(); err != nil {
		return err
	}

	Config = &cfg
	return nil
}

func (c *Configuration) validate() error {
	if c.Plex.URL == "" || c.Plex.Token == "" {
		return errors.New("plex.url and plex.token must be set")
	}

	if c.Paths.PlexSource == "" || c.Paths.RealSource == "" || c.Paths.CacheDir == "" {
		return errors.New("paths.plex_source, paths.real_source and paths.cache_dir must be set")
	}

	if len(c.Paths.PlexFolders) != len(c.Paths.RealFolders) {
		return errors.Errorf("paths.plex_library_folders and paths.real_library_folders must be the same length (%d vs %d)",
			len(c.Paths.PlexFolders), len(c.Paths.RealFolders))
	}

	if c.Paths.ScriptFolder == "" {
		c.Paths.ScriptFolder = filepath.Dir(strings.TrimSuffix(c.Paths.CacheDir, "/"))
	}

	return nil
}

// ValidatePaths confirms both tier roots exist, are directories and are
// writable. Called before any mutation begins.
func (c *Configuration) ValidatePaths() error {
	for _, path := range []string{c.Paths.RealSource, c.Paths.CacheDir} {
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrapf(err, "path does not exist: %q", path)
		}

		if !info.IsDir() {
			return errors.Errorf("path is not a directory: %q", path)
		}

		if err := unix.Access(path, unix.W_OK); err != nil {
			return errors.Wrapf(err, "path is not writable: %q", path)
		}
	}

	return nil
}

// WatchlistCachePath returns the persisted watchlist set location.
func (c *Configuration) WatchlistCachePath() string {
	return filepath.Join(c.Paths.ScriptFolder, "plexcache_watchlist_cache.json")
}

// WatchedCachePath returns the persisted watched set location.
func (c *Configuration) WatchedCachePath() string {
	return filepath.Join(c.Paths.ScriptFolder, "plexcache_watched_cache.json")
}

// MoverExcludePath returns the mover-exclusion artifact location.
func (c *Configuration) MoverExcludePath() string {
	return filepath.Join(c.Paths.ScriptFolder, "plexcache_mover_files_to_exclude.txt")
}
