package crowdin

import (
	"context"
	"fmt"
)

// ProjectInfo is the subset of project metadata testConnection and
// admin health probes care about.
type ProjectInfo struct {
	ID             int64
	Name           string
	SourceLanguage string
}

type projectResponse struct {
	Data struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		SourceLanguageID string `json:"sourceLanguageId"`
	} `json:"data"`
}

// ProjectMetadata fetches the project's identity, used by TestConnection
// and by admin-facing display.
func (c *Client) ProjectMetadata(ctx context.Context) (ProjectInfo, error) {
	var out projectResponse
	path := fmt.Sprintf("/projects/%s", c.cfg.ProjectID)
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return ProjectInfo{}, err
	}
	return ProjectInfo{ID: out.Data.ID, Name: out.Data.Name, SourceLanguage: out.Data.SourceLanguageID}, nil
}

// TestConnection verifies credentials and project id are valid by
// fetching project metadata (spec.md §4.K: "Project metadata (used for
// testConnection)").
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ProjectMetadata(ctx)
	return err
}
