package crowdin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type storageResponse struct {
	Data struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// UploadStorage uploads raw file bytes to Crowdin's temporary storage,
// returning the storageId used by AddFile/UpdateFile/UploadTranslation.
// Storage upload takes a filename-bearing Crowdin-API-Filename header
// and a raw body, unlike the rest of the API which is JSON throughout,
// so it bypasses doJSON and builds the request directly. It makes a
// single attempt: transient failures are not retried, and a 401/403 is
// not mapped to apperr.Auth; any non-2xx status comes back as a plain
// error carrying the status and body.
func (c *Client) UploadStorage(ctx context.Context, filename string, data []byte) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/storages", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Crowdin-API-FileName", filename)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("uploading to crowdin storage: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading storage upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("storage upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out storageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decoding storage upload response: %w", err)
	}
	return out.Data.ID, nil
}
