package plex

import (
	"context"

	"github.com/pkg/errors"
)

// Session is one actively playing stream.
type Session struct {
	Title string
	Show  string
	Type  string
	Files []string
}

// ActiveSessions returns the streams currently playing on the server.
func (c *Client) ActiveSessions(ctx context.Context) ([]Session, error) {
	container, err := c.getMediaContainer(ctx, "/status/sessions", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching active sessions")
	}

	sessions := make([]Session, 0, len(container.Metadata))
	for _, item := range container.Metadata {
		sessions = append(sessions, Session{
			Title: item.Title,
			Show:  item.GrandparentTitle,
			Type:  item.Type,
			Files: filePaths(item),
		})
	}

	c.log.Debugf("Found %d active session(s)", len(sessions))
	return sessions, nil
}
