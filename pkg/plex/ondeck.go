package plex

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// OnDeck returns the file paths of everything in the on-deck hub, restricted
// to sections and to items touched within daysToMonitor. On-deck episodes
// additionally pull in the next episodesAhead episodes of their show so a
// viewer never runs off the cached portion of a series.
func (c *Client) OnDeck(ctx context.Context, sections []int, daysToMonitor int, episodesAhead int) ([]string, error) {
	container, err := c.getMediaContainer(ctx, "/library/onDeck", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching on-deck media")
	}

	cutoff := time.Now().AddDate(0, 0, -daysToMonitor)

	var paths []string
	for _, item := range container.Metadata {
		if !sectionAllowed(sections, item.LibrarySectionID) {
			c.log.Tracef("Skipping on-deck item outside monitored sections: %q", item.Title)
			continue
		}
		if !withinWindow(item, cutoff) {
			c.log.Tracef("Skipping stale on-deck item: %q", item.Title)
			continue
		}

		paths = append(paths, filePaths(item)...)

		if item.Type == "episode" && episodesAhead > 0 {
			next, err := c.nextEpisodes(ctx, item, episodesAhead)
			if err != nil {
				c.log.WithError(err).Errorf("Failed fetching next episodes for %q", item.GrandparentTitle)
				continue
			}
			paths = append(paths, next...)
		}
	}

	c.log.Debugf("Found %d on-deck file(s)", len(paths))
	return paths, nil
}

// nextEpisodes returns the files of up to count episodes following the given
// one in broadcast order.
func (c *Client) nextEpisodes(ctx context.Context, episode Metadata, count int) ([]string, error) {
	path := fmt.Sprintf("/library/metadata/%s/allLeaves", episode.GrandparentRatingKey)
	container, err := c.getMediaContainer(ctx, path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed fetching episodes for show %q", episode.GrandparentRatingKey)
	}

	var paths []string
	for _, leaf := range container.Metadata {
		if len(paths) >= count {
			break
		}
		if !episodeAfter(leaf, episode) {
			continue
		}
		paths = append(paths, filePaths(leaf)...)
	}

	return paths, nil
}

func episodeAfter(candidate Metadata, current Metadata) bool {
	if candidate.ParentIndex != current.ParentIndex {
		return candidate.ParentIndex > current.ParentIndex
	}
	return candidate.Index > current.Index
}

// withinWindow accepts items viewed or added since the cutoff. Items with
// neither timestamp are kept; the hub put them there for a reason.
func withinWindow(item Metadata, cutoff time.Time) bool {
	if item.LastViewedAt > 0 {
		return time.Unix(item.LastViewedAt, 0).After(cutoff)
	}
	if item.AddedAt > 0 {
		return time.Unix(item.AddedAt, 0).After(cutoff)
	}
	return true
}
