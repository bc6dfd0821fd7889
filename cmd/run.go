package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/plexcache/plexcache/pkg/capacity"
	"github.com/plexcache/plexcache/pkg/config"
	"github.com/plexcache/plexcache/pkg/expression"
	"github.com/plexcache/plexcache/pkg/logger"
	"github.com/plexcache/plexcache/pkg/mediacache"
	"github.com/plexcache/plexcache/pkg/mover"
	"github.com/plexcache/plexcache/pkg/notification"
	"github.com/plexcache/plexcache/pkg/pathmap"
	"github.com/plexcache/plexcache/pkg/placement"
	"github.com/plexcache/plexcache/pkg/plex"
	"github.com/plexcache/plexcache/pkg/subtitles"
	"github.com/plexcache/plexcache/pkg/tiers"
)

func RunCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "run",
		Short: "Cache upcoming media and demote watched media",
		Long:  `This command fetches on-deck, watchlist and watched media from the server, then moves each file to its proper storage tier.`,

		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			start := time.Now()

			// init core
			if !initialized {
				initCore(true)
				initialized = true
			}

			// set log
			log := logger.GetLogger("run")
			cfg := config.Config

			noti := notification.NewDiscordSender(log, cfg.Notifications)

			// validate tier roots before anything mutates
			if err := cfg.ValidatePaths(); err != nil {
				log.WithError(err).Fatal("Failed validating paths")
			}

			mode := runMode()
			layout := tierLayout(mode)

			if mode.DryRun {
				log.Warn("Dry-run enabled, no files will be moved or removed")
			}
			if mode.StorageManager {
				log.Debug("Storage manager detected, array writes bypass the user share")
			}

			// connect to server
			pc := connectPlex(ctx, log)

			translator, err := pathmap.New(cfg.Paths.PlexSource, cfg.Paths.RealSource,
				cfg.Paths.PlexFolders, cfg.Paths.RealFolders)
			if err != nil {
				log.WithError(err).Fatal("Failed building path translator")
			}

			// active sessions
			skip := strset.New()
			sessions, err := pc.ActiveSessions(ctx)
			if err != nil {
				log.WithError(err).Fatal("Failed fetching active sessions")
			}

			if len(sessions) > 0 {
				if cfg.ExitIfActiveSession {
					log.Warnf("Found %d active session(s), exiting...", len(sessions))
					return
				}

				for _, session := range sessions {
					log.Infof("Active session: %q (%s), its files will not be touched", session.Title, session.Type)
					skip.Add(translator.Translate(session.Files)...)
				}
			}

			// fetch media per destination
			cacheBoundPlex := fetchCacheBound(ctx, pc, log)
			watchedPlex := fetchWatched(ctx, pc, log)

			// translate server paths to filesystem paths
			cacheBound := translator.Translate(cacheBoundPlex)
			watched := translator.Translate(watchedPlex)

			// pull in subtitle companions
			resolver := subtitles.New(cfg.Subtitles.Extensions)
			cacheBound = resolver.Resolve(cacheBound, skip)
			watched = resolver.Resolve(watched, skip)

			// apply skip filters
			skipExpressions, err := expression.Compile(cfg.Filters.Skip)
			if err != nil {
				log.WithError(err).Fatal("Failed compiling skip filter expressions")
			}
			cacheBound = applySkipFilters(cacheBound, skipExpressions, log)
			watched = applySkipFilters(watched, skipExpressions, log)

			log.Infof("Candidates: %d cache-bound file(s), %d watched file(s)", len(cacheBound), len(watched))

			decider := placement.New(layout, mode, cfg.MoverExcludePath())
			guard := capacity.New()
			mv := mover.New(layout, mode)

			var fields []notification.Field
			var movedBytes uint64
			var movedFiles, failedFiles int

			// watched media goes back to the array first, freeing cache
			// space for the incoming batch
			cacheBoundSet := strset.New(cacheBound...)
			for _, batch := range []struct {
				files       []string
				destination tiers.Tier
			}{
				{watched, tiers.Array},
				{cacheBound, tiers.Cache},
			} {
				moved, failed, bytes, batchFields := processBatch(batch.files, batch.destination,
					cacheBoundSet, skip, decider, guard, mv, noti, layout, mode, log)
				movedFiles += moved
				failedFiles += failed
				movedBytes += bytes
				fields = append(fields, batchFields...)
			}

			log.Info("-----")
			log.WithField("moved_size", humanize.IBytes(movedBytes)).
				Infof("Moved %d file(s) with %d failure(s)", movedFiles, failedFiles)

			if !noti.CanSend() {
				log.Debug("Notifications disabled, skipping...")
				return
			}

			sendErr := noti.Send(
				"Media Placement",
				fmt.Sprintf("Moved **%d** files | Total moved **%s** | **%d** failures",
					movedFiles, humanize.IBytes(movedBytes), failedFiles),
				time.Since(start),
				fields,
				FlagDryRun,
			)
			if sendErr != nil {
				log.WithError(sendErr).Error("Failed sending notification")
			}
		},
	}

	command.Flags().BoolVar(&FlagSkipCache, "skip-cache", false, "Ignore cached watchlist/watched media and fetch fresh")

	return command
}

// connectPlex dials the server, retrying per the performance settings.
func connectPlex(ctx context.Context, log *logrus.Entry) *plex.Client {
	cfg := config.Config
	pc := plex.NewClient(cfg.Plex.URL, cfg.Plex.Token)

	var err error
	for attempt := 0; attempt <= cfg.Performance.RetryLimit; attempt++ {
		if err = pc.Connect(ctx); err == nil {
			log.Infof("Connected to server: %s", cfg.Plex.URL)
			return pc
		}

		if attempt < cfg.Performance.RetryLimit {
			log.WithError(err).Warnf("Failed connecting to server, retrying in %ds (%d/%d)",
				cfg.Performance.Delay, attempt+1, cfg.Performance.RetryLimit)
			time.Sleep(time.Duration(cfg.Performance.Delay) * time.Second)
		}
	}

	log.WithError(err).Fatalf("Failed connecting to server after %d attempt(s)", cfg.Performance.RetryLimit+1)
	return nil
}

// fetchCacheBound collects on-deck media plus the watchlist, the latter
// served from its JSON cache until it expires.
func fetchCacheBound(ctx context.Context, pc *plex.Client, log *logrus.Entry) []string {
	cfg := config.Config

	onDeck, err := pc.OnDeck(ctx, cfg.Plex.ValidSections, cfg.Plex.DaysToMonitor, cfg.Plex.NumberEpisodes)
	if err != nil {
		log.WithError(err).Fatal("Failed fetching on-deck media")
	}
	log.Infof("Fetched %d on-deck file(s)", len(onDeck))

	media := onDeck

	if cfg.Cache.WatchlistToggle {
		store := mediacache.NewStore(cfg.WatchlistCachePath())
		expiry := time.Duration(cfg.Cache.WatchlistCacheExpiry) * time.Hour

		if !FlagSkipCache && !store.Expired(expiry) {
			cached, _, err := store.Load()
			if err != nil {
				log.WithError(err).Fatal("Failed loading watchlist cache")
			}
			log.Debugf("Using cached watchlist: %d file(s)", cached.Size())
			media = append(media, cached.List()...)
		} else {
			watchlist, err := pc.Watchlist(ctx, cfg.Plex.ValidSections, cfg.Cache.WatchlistEpisodes)
			if err != nil {
				log.WithError(err).Fatal("Failed fetching watchlist media")
			}
			log.Infof("Fetched %d watchlist file(s)", len(watchlist))

			if err := store.Save(watchlist, time.Now()); err != nil {
				log.WithError(err).Fatal("Failed saving watchlist cache")
			}
			media = append(media, watchlist...)
		}
	}

	return media
}

// fetchWatched collects fully watched media, served from its JSON cache
// until it expires.
func fetchWatched(ctx context.Context, pc *plex.Client, log *logrus.Entry) []string {
	cfg := config.Config

	if !cfg.Cache.WatchedMove {
		log.Debug("Watched media demotion disabled")
		return nil
	}

	store := mediacache.NewStore(cfg.WatchedCachePath())
	expiry := time.Duration(cfg.Cache.WatchedCacheExpiry) * time.Hour

	if !FlagSkipCache && !store.Expired(expiry) {
		cached, _, err := store.Load()
		if err != nil {
			log.WithError(err).Fatal("Failed loading watched cache")
		}
		log.Debugf("Using cached watched media: %d file(s)", cached.Size())
		return cached.List()
	}

	since := time.Now().AddDate(0, 0, -cfg.Plex.DaysToMonitor)
	watched, err := pc.Watched(ctx, cfg.Plex.ValidSections, since)
	if err != nil {
		log.WithError(err).Fatal("Failed fetching watched media")
	}
	log.Infof("Fetched %d watched file(s)", len(watched))

	if err := store.Save(watched, time.Now()); err != nil {
		log.WithError(err).Fatal("Failed saving watched cache")
	}

	return watched
}

func applySkipFilters(files []string, expressions []expression.CompiledExpression, log *logrus.Entry) []string {
	if len(expressions) == 0 {
		return files
	}

	kept := make([]string, 0, len(files))
	for _, file := range files {
		media := config.NewMediaFile(file)

		match, matchedExpr, err := expression.CheckMediaSingleMatch(media, expressions)
		if err != nil {
			log.WithError(err).Errorf("Failed evaluating skip filter, keeping: %q", file)
			kept = append(kept, file)
			continue
		}

		if match {
			log.Debugf("Skipping file matching filter %q: %q", matchedExpr, file)
			continue
		}

		kept = append(kept, file)
	}

	return kept
}

// processBatch decides, gates on capacity and moves one destination batch.
func processBatch(files []string, destination tiers.Tier, cacheBound *strset.Set, skip *strset.Set,
	decider *placement.Decider, guard *capacity.Guard, mv *mover.Mover,
	noti notification.Sender, layout *tiers.Layout, mode tiers.Mode, log *logrus.Entry) (int, int, uint64, []notification.Field) {

	cfg := config.Config

	selected, reclaimed, err := decider.Decide(files, destination, cacheBound, skip)
	if err != nil {
		log.WithError(err).Fatalf("Failed deciding %s batch", destination)
	}

	// reclaimed redundant copies are already gone, report them regardless
	// of how the rest of the batch fares
	fields := make([]notification.Field, 0, len(reclaimed)+len(selected))
	for _, reclaim := range reclaimed {
		fields = append(fields, noti.BuildField(notification.ActionCleanup, notification.BuildOptions{
			Path:      reclaim.Path,
			SizeBytes: reclaim.Size,
			From:      reclaim.Tier.String(),
			IsFile:    true,
		}))
	}

	if len(selected) == 0 {
		log.Infof("Nothing to move to %s", destination)
		return 0, 0, 0, fields
	}

	// the batch sizes by the copy that is about to move
	sources := make([]string, 0, len(selected))
	for _, file := range selected {
		sources = append(sources, moveSource(file, layout, destination))
	}
	needed := guard.SizeBatch(sources)

	destRoot := cfg.Paths.CacheDir
	if destination == tiers.Array {
		destRoot = layout.ArrayPath(cfg.Paths.RealSource)
	}

	free, err := guard.FreeSpace(destRoot)
	if err != nil {
		log.WithError(err).Fatalf("Failed reading free space for %s", destination)
	}

	log.Infof("Moving to %s: %d file(s), %s needed, %s free",
		destination, len(selected), humanize.IBytes(needed), humanize.IBytes(free))

	if err := guard.Verify(needed, free); err != nil {
		if mode.DryRun {
			log.WithError(err).Warnf("Skipping %s batch", destination)
			return 0, 0, 0, fields
		}
		log.WithError(err).Fatalf("Cannot move %s batch", destination)
	}

	from, to := tiers.Cache, tiers.Array
	if destination == tiers.Cache {
		from, to = tiers.Array, tiers.Cache
	}

	for i, file := range selected {
		var size int64
		if info, err := os.Stat(sources[i]); err == nil {
			size = info.Size()
		}
		fields = append(fields, noti.BuildField(notification.ActionMove, notification.BuildOptions{
			Path:      file,
			SizeBytes: size,
			From:      from.String(),
			To:        to.String(),
			IsFile:    true,
		}))
	}

	failed, err := mv.Move(selected, destination,
		cfg.Performance.MaxConcurrentMovesCache, cfg.Performance.MaxConcurrentMovesArray)
	if err != nil {
		log.WithError(err).Fatalf("Failed moving %s batch", destination)
	}

	return len(selected) - failed, failed, needed, fields
}

// moveSource is the physical copy a move to destination will read from.
func moveSource(file string, layout *tiers.Layout, destination tiers.Tier) string {
	if destination == tiers.Array {
		return layout.CachePath(file)
	}
	return layout.ArrayPath(file)
}
