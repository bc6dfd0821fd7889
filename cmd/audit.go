package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scylladb/go-set/strset"
	"github.com/spf13/cobra"

	"github.com/plexcache/plexcache/pkg/config"
	"github.com/plexcache/plexcache/pkg/logger"
	"github.com/plexcache/plexcache/pkg/notification"
	"github.com/plexcache/plexcache/pkg/paths"
)

var (
	auditRemove      bool
	auditGracePeriod time.Duration
	auditIgnorePaths []string
)

func AuditCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "audit",
		Short: "Find stale files on the cache tier",
		Long:  `This command scans the cache tier for files that no tracked media claims and optionally removes them.`,

		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			start := time.Now()

			// init core
			if !initialized {
				initCore(true)
				initialized = true
			}

			// set log
			log := logger.GetLogger("audit")
			cfg := config.Config

			noti := notification.NewDiscordSender(log, cfg.Notifications)

			// the exclusion artifact is the authority on what belongs on
			// the cache tier
			keep, err := loadTrackedCachePaths(cfg.MoverExcludePath())
			if err != nil {
				log.WithError(err).Fatal("Failed loading tracked cache paths, run the placement first")
			}
			log.Infof("Loaded %d tracked cache path(s)", keep.Size())

			// get all paths on the cache tier
			localPaths, _ := paths.InFolder(cfg.Paths.CacheDir, true, true, nil)
			log.Tracef("Retrieved %d paths from: %q", len(localPaths), cfg.Paths.CacheDir)

			// sort paths into their respective maps
			localFilePaths := make(map[string]int64)
			localFolderPaths := make(map[string]int64)

			for _, p := range localPaths {
				if p.IsDir {
					if strings.EqualFold(p.Path, cfg.Paths.CacheDir) {
						// ignore cache tier root
						continue
					}
					localFolderPaths[p.Path] = p.Size
				} else {
					localFilePaths[p.Path] = p.Size
				}
			}

			log.Infof("Retrieved paths from %q: %d files / %d folders", cfg.Paths.CacheDir,
				len(localFilePaths), len(localFolderPaths))

			const maxWorkers = 10

			var (
				wg             sync.WaitGroup
				mu             sync.Mutex
				removeFailures atomic.Uint32
				staleFiles     atomic.Uint32
				removedFiles   atomic.Uint32
				ignoredFiles   atomic.Uint32
				staleFilesSize atomic.Uint64
				fields         []notification.Field
			)

			log.Debugf("Using grace period: %v", auditGracePeriod)

			processConcurrently(localFilePaths, maxWorkers, func(localPath string, localPathSize int64) {
				defer wg.Done()

				if keep.Has(localPath) {
					return
				}

				if paths.IsIgnored(localPath, auditIgnorePaths) {
					mu.Lock()
					log.Debugf("File matches a path in the ignore list, skipping: %q", localPath)
					mu.Unlock()
					ignoredFiles.Add(1)
					return
				}

				// check file modification time for grace period
				fileInfo, err := os.Stat(localPath)
				if err != nil {
					mu.Lock()
					log.WithError(err).Warnf("Could not stat file, skipping: %q", localPath)
					mu.Unlock()
					return
				}

				if time.Since(fileInfo.ModTime()) < auditGracePeriod {
					mu.Lock()
					log.Debugf("File within grace period (%v), skipping: %q", auditGracePeriod, localPath)
					mu.Unlock()
					return
				}

				staleFiles.Add(1)
				staleFilesSize.Add(uint64(localPathSize))

				mu.Lock()
				log.Infof("Stale cache file: %q (%s)", localPath, humanize.IBytes(uint64(localPathSize)))
				fields = append(fields, noti.BuildField(notification.ActionAudit, notification.BuildOptions{
					Path:      localPath,
					SizeBytes: localPathSize,
					IsFile:    true,
				}))
				mu.Unlock()

				if !auditRemove {
					return
				}

				if FlagDryRun {
					mu.Lock()
					log.Warn("Dry-run enabled, skipping remove...")
					mu.Unlock()
					return
				}

				if err := os.Remove(localPath); err != nil {
					mu.Lock()
					log.WithError(err).Errorf("Failed removing stale cache file")
					mu.Unlock()
					removeFailures.Add(1)
				} else {
					mu.Lock()
					log.Info("Removed")
					mu.Unlock()
					removedFiles.Add(1)
				}
			}, &wg)

			wg.Wait()

			// folders are only cleaned up when removal is on; deepest first
			// so emptied parents follow their children
			var removedFolders uint32
			if auditRemove {
				staleFolderPaths := make([]string, 0, len(localFolderPaths))
				for localPath := range localFolderPaths {
					if paths.IsIgnored(localPath, auditIgnorePaths) {
						continue
					}
					staleFolderPaths = append(staleFolderPaths, localPath)
				}

				sort.Slice(staleFolderPaths, func(i, j int) bool {
					return len(staleFolderPaths[i]) > len(staleFolderPaths[j])
				})

				log.Debugf("Processing %d potential empty folders, sorted by depth", len(staleFolderPaths))

				for _, localPath := range staleFolderPaths {
					empty, err := paths.IsDirEmpty(localPath)
					if err != nil {
						log.WithError(err).Warnf("Could not check if directory is empty, skipping: %q", localPath)
						continue
					}
					if !empty {
						continue
					}

					log.Infof("Removing empty cache directory: %q", localPath)
					if FlagDryRun {
						log.Warn("Dry-run enabled, skipping remove...")
						continue
					}

					if err := os.Remove(localPath); err != nil {
						log.WithError(err).Errorf("Failed removing empty cache directory")
						removeFailures.Add(1)
						continue
					}

					fields = append(fields, noti.BuildField(notification.ActionAudit, notification.BuildOptions{
						Path:   localPath,
						IsFile: false,
					}))
					removedFolders++
				}
			}

			log.Info("-----")
			log.WithField("stale_size", humanize.IBytes(staleFilesSize.Load())).
				Infof("Found %d stale file(s), removed %d files and %d folders with %d failures. Ignored %d files",
					staleFiles.Load(), removedFiles.Load(), removedFolders, removeFailures.Load(), ignoredFiles.Load())

			if !noti.CanSend() {
				log.Debug("Notifications disabled, skipping...")
				return
			}

			sendErr := noti.Send(
				"Cache Audit",
				fmt.Sprintf("Found **%d** stale files | Total stale **%s** | Removed **%d** files and **%d** folders",
					staleFiles.Load(), humanize.IBytes(staleFilesSize.Load()), removedFiles.Load(), removedFolders),
				time.Since(start),
				fields,
				FlagDryRun,
			)
			if sendErr != nil {
				log.WithError(sendErr).Error("Failed sending notification")
			}
		},
	}

	command.Flags().BoolVar(&auditRemove, "remove", false, "Remove stale files and empty folders")
	command.Flags().DurationVar(&auditGracePeriod, "grace-period", 10*time.Minute, "Skip files modified within this period")
	command.Flags().StringSliceVar(&auditIgnorePaths, "ignore", nil, "Skip paths containing any of these fragments")

	return command
}

// loadTrackedCachePaths reads the mover-exclusion artifact into a set.
func loadTrackedCachePaths(path string) (*strset.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	keep := strset.New()
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			keep.Add(line)
		}
	}

	return keep, nil
}

// processConcurrently runs processFn over the map with a bounded worker pool.
func processConcurrently(items map[string]int64, maxWorkers int,
	processFn func(string, int64), wg *sync.WaitGroup) {

	workerSem := make(chan struct{}, maxWorkers)

	for k, v := range items {
		wg.Add(1)
		workerSem <- struct{}{}

		go func(path string, size int64) {
			defer func() {
				<-workerSem
			}()

			processFn(path, size)
		}(k, v)
	}
}
