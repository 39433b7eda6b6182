package api

import (
	"context"
	"fmt"
	"net/http"
)

const apiMatchesPath = "/api/matches/"

// Matches lists accepted matches for a jobseeker, or every pending and
// accepted match across a recruiter's postings.
func (c *Client) Matches(ctx context.Context) ([]*Match, error) {
	var matches []*Match
	if err := c.list(ctx, apiMatchesPath, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (c *Client) SetMatchStatus(ctx context.Context, matchID int, status MatchStatus) (*Match, error) {
	path := fmt.Sprintf("%s%d/", apiMatchesPath, matchID)

	req, err := jsonRequest(http.MethodPatch, path, map[string]MatchStatus{"status": status}, true)
	if err != nil {
		return nil, err
	}

	var match Match
	if err := c.do(ctx, req, &match); err != nil {
		return nil, err
	}

	return &match, nil
}
