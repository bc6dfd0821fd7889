package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lucperkins/rek"
	"github.com/pkg/errors"
)

const watchlistURL = "https://discover.provider.plex.tv/library/sections/watchlist/all"

// Watchlist returns the file paths of watchlisted media present in the local
// library. The watchlist itself lives in Plex's cloud discover service, so
// titles are resolved back to local files through the server's search.
// Watchlisted shows contribute their first episodesAhead unplayed episodes.
func (c *Client) Watchlist(ctx context.Context, sections []int, episodesAhead int) ([]string, error) {
	titles, err := c.fetchWatchlistTitles()
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching watchlist")
	}

	var paths []string
	for _, title := range titles {
		resolved, err := c.resolveTitle(ctx, title, sections, episodesAhead)
		if err != nil {
			c.log.WithError(err).Errorf("Failed resolving watchlist title: %q", title)
			continue
		}
		if len(resolved) == 0 {
			c.log.Tracef("Watchlist title not in local library: %q", title)
		}
		paths = append(paths, resolved...)
	}

	c.log.Debugf("Found %d watchlist file(s)", len(paths))
	return paths, nil
}

// fetchWatchlistTitles queries the cloud discover endpoint, which speaks the
// same MediaContainer JSON as the server but only carries titles.
func (c *Client) fetchWatchlistTitles() ([]string, error) {
	resp, err := rek.Get(watchlistURL, rek.Headers(map[string]string{
		"Accept":       "application/json",
		"X-Plex-Token": c.token,
	}), rek.Timeout(defaultTimeout))
	if err != nil {
		return nil, errors.Wrap(err, "failed requesting discover service")
	}
	defer resp.Body().Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Errorf("discover service returned status %d", resp.StatusCode())
	}

	body, err := io.ReadAll(resp.Body())
	if err != nil {
		return nil, errors.Wrap(err, "failed reading discover response")
	}

	var api APIResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, errors.Wrap(err, "failed decoding discover response")
	}

	titles := make([]string, 0, len(api.MediaContainer.Metadata))
	for _, item := range api.MediaContainer.Metadata {
		titles = append(titles, item.Title)
	}

	return titles, nil
}

func (c *Client) resolveTitle(ctx context.Context, title string, sections []int, episodesAhead int) ([]string, error) {
	query := url.Values{}
	query.Set("query", title)

	container, err := c.getMediaContainer(ctx, "/search", query)
	if err != nil {
		return nil, err
	}

	for _, item := range container.Metadata {
		if item.Title != title || !sectionAllowed(sections, item.LibrarySectionID) {
			continue
		}

		switch item.Type {
		case "movie":
			return filePaths(item), nil
		case "show":
			return c.unplayedEpisodes(ctx, item.RatingKey, episodesAhead)
		}
	}

	return nil, nil
}

// unplayedEpisodes returns the files of the first count unplayed episodes of
// a show, in broadcast order.
func (c *Client) unplayedEpisodes(ctx context.Context, showKey string, count int) ([]string, error) {
	path := fmt.Sprintf("/library/metadata/%s/allLeaves", url.PathEscape(showKey))
	container, err := c.getMediaContainer(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var paths []string
	taken := 0
	for _, leaf := range container.Metadata {
		if taken >= count {
			break
		}
		if leaf.ViewCount > 0 {
			continue
		}
		paths = append(paths, filePaths(leaf)...)
		taken++
	}

	return paths, nil
}
