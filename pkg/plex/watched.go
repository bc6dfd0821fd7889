package plex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Watched returns the file paths of media fully watched since the given
// time, across the monitored sections. Shows are expanded to their watched
// episodes. An empty section list means every section on the server.
func (c *Client) Watched(ctx context.Context, sections []int, since time.Time) ([]string, error) {
	sections, err := c.sectionKeys(ctx, sections)
	if err != nil {
		return nil, err
	}

	var paths []string

	for _, section := range sections {
		sectionPaths, err := c.watchedInSection(ctx, section, since)
		if err != nil {
			return nil, errors.Wrapf(err, "failed fetching watched media for section %d", section)
		}
		paths = append(paths, sectionPaths...)
	}

	c.log.Debugf("Found %d watched file(s)", len(paths))
	return paths, nil
}

// sectionKeys resolves the monitored section list, falling back to every
// section on the server when none are configured.
func (c *Client) sectionKeys(ctx context.Context, sections []int) ([]int, error) {
	if len(sections) > 0 {
		return sections, nil
	}

	container, err := c.getMediaContainer(ctx, "/library/sections", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed listing library sections")
	}

	keys := make([]int, 0, len(container.Directory))
	for _, dir := range container.Directory {
		key, err := strconv.Atoi(dir.Key)
		if err != nil {
			c.log.Warnf("Skipping section with non-numeric key: %q (%s)", dir.Key, dir.Title)
			continue
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func (c *Client) watchedInSection(ctx context.Context, section int, since time.Time) ([]string, error) {
	query := url.Values{}
	query.Set("unwatched", "0")

	path := fmt.Sprintf("/library/sections/%d/all", section)
	container, err := c.getMediaContainer(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, item := range container.Metadata {
		switch item.Type {
		case "movie":
			if watchedSince(item, since) {
				paths = append(paths, filePaths(item)...)
			}
		case "show":
			episodes, err := c.watchedEpisodes(ctx, item.RatingKey, since)
			if err != nil {
				c.log.WithError(err).Errorf("Failed fetching watched episodes for %q", item.Title)
				continue
			}
			paths = append(paths, episodes...)
		}
	}

	return paths, nil
}

func (c *Client) watchedEpisodes(ctx context.Context, showKey string, since time.Time) ([]string, error) {
	path := fmt.Sprintf("/library/metadata/%s/allLeaves", url.PathEscape(showKey))
	container, err := c.getMediaContainer(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, leaf := range container.Metadata {
		if watchedSince(leaf, since) {
			paths = append(paths, filePaths(leaf)...)
		}
	}

	return paths, nil
}

func watchedSince(item Metadata, since time.Time) bool {
	if item.ViewCount < 1 {
		return false
	}
	return time.Unix(item.LastViewedAt, 0).After(since)
}
