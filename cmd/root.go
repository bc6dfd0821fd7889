package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/plexcache/plexcache/pkg/config"
	"github.com/plexcache/plexcache/pkg/logger"
	apprt "github.com/plexcache/plexcache/pkg/runtime"
	"github.com/plexcache/plexcache/pkg/tiers"
)

var (
	// Global flags
	FlagLogLevel     = 0
	FlagConfigFile   = "config.yaml"
	FlagConfigFolder = config.GetDefaultConfigDirectory("plexcache", "config.yaml")
	FlagLogFile      = "activity.log"

	FlagDryRun    bool
	FlagSkipCache bool

	// Global vars
	log         *logrus.Entry
	initialized bool
)

func initCore(showAppInfo bool) {
	// init config
	configFilePath := filepath.Join(FlagConfigFolder, FlagConfigFile)
	if err := config.Init(configFilePath); err != nil {
		fmt.Printf("Failed initializing config: %v\n", err)
		os.Exit(1)
	}

	// init logging
	logFilePath := filepath.Join(FlagConfigFolder, FlagLogFile)
	if err := logger.Init(FlagLogLevel, logFilePath); err != nil {
		fmt.Printf("Failed initializing logger: %v\n", err)
		os.Exit(1)
	}

	log = logger.GetLogger("app")

	// show app info
	if showAppInfo {
		showUsing()
	}
}

func showUsing() {
	log.Infof("Using %s = %s (%s@%s)", stringLeftJust("VERSION", " ", 10),
		apprt.Version, apprt.GitCommit, apprt.Timestamp)
	log.Infof("Using %s = %s", stringLeftJust("CONFIG", " ", 10),
		filepath.Join(FlagConfigFolder, FlagConfigFile))
	log.Infof("Using %s = %s", stringLeftJust("LOG", " ", 10),
		filepath.Join(FlagConfigFolder, FlagLogFile))
	log.Infof("Using %s = %s/%s", stringLeftJust("OS", " ", 10), runtime.GOOS, runtime.GOARCH)
	if tiers.DetectDocker() {
		log.Infof("Using %s = docker", stringLeftJust("ENV", " ", 10))
	}
}

func stringLeftJust(text string, filler string, size int) string {
	for len(text) < size {
		text += filler
	}
	return text
}

// runMode assembles the run-wide switches shared by the decider and mover.
func runMode() tiers.Mode {
	return tiers.Mode{
		DryRun:         FlagDryRun,
		StorageManager: tiers.DetectStorageManager(),
	}
}

// tierLayout derives the two-tier layout from the active configuration.
func tierLayout(mode tiers.Mode) *tiers.Layout {
	return &tiers.Layout{
		RealSource:     config.Config.Paths.RealSource,
		CacheDir:       config.Config.Paths.CacheDir,
		StorageManager: mode.StorageManager,
	}
}
