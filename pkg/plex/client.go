package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/plexcache/plexcache/pkg/httputils"
	"github.com/plexcache/plexcache/pkg/logger"
	"github.com/plexcache/plexcache/pkg/runtime"
)

const (
	defaultTimeout = 30 * time.Second
	clientID       = "plexcache-cli"
	product        = "PlexCache"
)

// Client talks to a Plex Media Server over its JSON API.
type Client struct {
	serverURL string
	token     string

	httpClient *http.Client
	log        *logrus.Entry
}

func NewClient(serverURL string, token string) *Client {
	log := logger.GetLogger("plex")

	return &Client{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		token:      token,
		httpClient: httputils.NewRetryableHttpClient(defaultTimeout, ratelimit.New(5), log),
		log:        log,
	}
}

// Connect verifies the server is reachable and the token valid.
func (c *Client) Connect(ctx context.Context) error {
	container, err := c.getMediaContainer(ctx, "/identity", nil)
	if err != nil {
		return errors.Wrap(err, "failed connecting to server")
	}

	c.log.Debugf("Connected to server: %s (version: %s)",
		container.MachineIdentifier, container.Version)
	return nil
}

func (c *Client) getMediaContainer(ctx context.Context, path string, query url.Values) (*MediaContainer, error) {
	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var resp APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed decoding response for %q", path)
	}

	return &resp.MediaContainer, nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := c.serverURL + path
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed creating request for %q", path)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Client-Identifier", clientID)
	req.Header.Set("X-Plex-Product", product)
	req.Header.Set("X-Plex-Version", runtime.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed requesting %q", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.Errorf("server rejected token for %q", path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d for %q", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading response for %q", path)
	}

	return body, nil
}

// filePaths flattens every media part file from a metadata item.
func filePaths(item Metadata) []string {
	var paths []string
	for _, media := range item.Media {
		for _, part := range media.Part {
			if part.File != "" {
				paths = append(paths, part.File)
			}
		}
	}
	return paths
}

func sectionAllowed(sections []int, id int) bool {
	if len(sections) == 0 {
		return true
	}
	for _, s := range sections {
		if s == id {
			return true
		}
	}
	return false
}
