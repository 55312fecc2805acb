package crowdin

import (
	"context"
	"fmt"
)

// UploadTranslation attaches a translated-file storage upload to fileId
// for the given target language.
func (c *Client) UploadTranslation(ctx context.Context, fileID int64, languageID string, storageID int64) error {
	path := fmt.Sprintf("/projects/%s/translations/%d", c.cfg.ProjectID, fileID)
	body := map[string]any{"storageId": storageID, "languageId": languageID}
	return c.doJSON(ctx, "POST", path, body, nil)
}
