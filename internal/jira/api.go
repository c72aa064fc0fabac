package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Tracker API endpoints, relative to the configured base URL.
const (
	endpointMyself    = "/rest/api/3/myself"
	endpointSearchJQL = "/rest/api/3/search/jql"
)

// User is the tracker's identity record for the authenticated user.
type User struct {
	AccountID string `json:"accountId"`
}

// WorklogAuthor identifies who recorded a worklog entry.
type WorklogAuthor struct {
	AccountID string `json:"accountId"`
}

// Worklog is a single timestamped record of time spent on an issue,
// sourced verbatim from the tracker and never mutated.
type Worklog struct {
	Author           WorklogAuthor `json:"author"`
	Started          string        `json:"started"`
	TimeSpentSeconds float64       `json:"timeSpentSeconds"`
}

type searchResponse struct {
	Issues []struct {
		Key string `json:"key"`
	} `json:"issues"`
}

type worklogResponse struct {
	Worklogs []Worklog `json:"worklogs"`
}

// WhoAmI resolves the identity of the user the ambient session belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*User, error) {
	raw, err := c.Call(ctx, endpointMyself, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return &user, nil
}

// SearchIssues runs a JQL search and returns the matching issue keys,
// capped at maxResults.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]string, error) {
	raw, err := c.Call(ctx, endpointSearchJQL, map[string]string{
		"jql":        jql,
		"fields":     "key",
		"maxResults": strconv.Itoa(maxResults),
	})
	if err != nil {
		return nil, err
	}

	var res searchResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	keys := make([]string, 0, len(res.Issues))
	for _, issue := range res.Issues {
		keys = append(keys, issue.Key)
	}
	return keys, nil
}

// IssueWorklogs fetches every worklog entry recorded on one issue.
func (c *Client) IssueWorklogs(ctx context.Context, issueKey string) ([]Worklog, error) {
	raw, err := c.Call(ctx, "/rest/api/3/issue/"+issueKey+"/worklog", nil)
	if err != nil {
		return nil, err
	}

	var res worklogResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode worklog response for %s: %w", issueKey, err)
	}
	return res.Worklogs, nil
}
