package crowdin

import (
	"context"
	"fmt"
	"strings"
)

type directoryEntry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DirectoryID *int64 `json:"directoryId"`
}

type fileEntry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DirectoryID *int64 `json:"directoryId"`
}

type listDirectoriesResponse struct {
	Data []struct {
		Data directoryEntry `json:"data"`
	} `json:"data"`
}

type listFilesResponse struct {
	Data []struct {
		Data fileEntry `json:"data"`
	} `json:"data"`
}

type directoryCreateResponse struct {
	Data directoryEntry `json:"data"`
}

type fileCreateResponse struct {
	Data fileEntry `json:"data"`
}

func (c *Client) listDirectories(ctx context.Context, parentID *int64) ([]directoryEntry, error) {
	path := fmt.Sprintf("/projects/%s/directories?limit=500", c.cfg.ProjectID)
	if parentID != nil {
		path += fmt.Sprintf("&directoryId=%d", *parentID)
	}
	var out listDirectoriesResponse
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	entries := make([]directoryEntry, 0, len(out.Data))
	for _, d := range out.Data {
		entries = append(entries, d.Data)
	}
	return entries, nil
}

func (c *Client) createDirectory(ctx context.Context, name string, parentID *int64) (int64, error) {
	body := map[string]any{"name": name}
	if parentID != nil {
		body["directoryId"] = *parentID
	}
	var out directoryCreateResponse
	path := fmt.Sprintf("/projects/%s/directories", c.cfg.ProjectID)
	if err := c.doJSON(ctx, "POST", path, body, &out); err != nil {
		return 0, err
	}
	return out.Data.ID, nil
}

// ResolveOrCreateDirectoryPath walks a slash-separated path (e.g.
// "group/shop"), creating any missing intermediate directory, and
// returns the leaf directory's id. An empty path returns 0 (project
// root), matching spec.md §6's "global" directory policy case.
func (c *Client) ResolveOrCreateDirectoryPath(ctx context.Context, path string) (int64, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return 0, nil
	}
	var parentID *int64
	for _, segment := range strings.Split(path, "/") {
		entries, err := c.listDirectories(ctx, parentID)
		if err != nil {
			return 0, fmt.Errorf("listing directories under parent: %w", err)
		}
		var found *int64
		for _, e := range entries {
			if e.Name == segment {
				id := e.ID
				found = &id
				break
			}
		}
		if found == nil {
			id, err := c.createDirectory(ctx, segment, parentID)
			if err != nil {
				return 0, fmt.Errorf("creating directory %q: %w", segment, err)
			}
			found = &id
		}
		parentID = found
	}
	return *parentID, nil
}

// GetFile returns the fileId of name within directoryId, if it exists.
// directoryId of 0 means the project root.
func (c *Client) GetFile(ctx context.Context, directoryID int64, name string) (int64, bool, error) {
	path := fmt.Sprintf("/projects/%s/files?limit=500", c.cfg.ProjectID)
	if directoryID != 0 {
		path += fmt.Sprintf("&directoryId=%d", directoryID)
	}
	var out listFilesResponse
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return 0, false, err
	}
	for _, f := range out.Data {
		if f.Data.Name == name {
			return f.Data.ID, true, nil
		}
	}
	return 0, false, nil
}

// AddFile creates a new file from the given storage upload.
func (c *Client) AddFile(ctx context.Context, storageID int64, name string, directoryID int64) (int64, error) {
	body := map[string]any{"storageId": storageID, "name": name}
	if directoryID != 0 {
		body["directoryId"] = directoryID
	}
	var out fileCreateResponse
	path := fmt.Sprintf("/projects/%s/files", c.cfg.ProjectID)
	if err := c.doJSON(ctx, "POST", path, body, &out); err != nil {
		return 0, err
	}
	return out.Data.ID, nil
}

// UpdateFile replaces an existing file's content with a new storage upload.
func (c *Client) UpdateFile(ctx context.Context, fileID int64, storageID int64) error {
	path := fmt.Sprintf("/projects/%s/files/%d", c.cfg.ProjectID, fileID)
	return c.doJSON(ctx, "PUT", path, map[string]any{"storageId": storageID}, nil)
}
