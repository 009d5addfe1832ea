package platform

import (
	"context"
	"encoding/json"
	"fmt"
)

// XTransport drives the v2 X (Twitter) API: tweets, quotes, replies and
// media upload, per the §4.8 per-platform contract.
type XTransport struct {
	bearerToken string
	baseURL     string // overridable for tests
}

func NewXTransport(bearerToken string) *XTransport {
	return &XTransport{bearerToken: bearerToken, baseURL: "https://api.x.com/2"}
}

func (t *XTransport) Name() string { return "x" }

func (t *XTransport) CreatePost(ctx context.Context, req WriteRequest) (string, error) {
	payload := map[string]any{"text": req.Text}
	if req.InReplyTo != "" {
		payload["reply"] = map[string]string{"in_reply_to_tweet_id": req.InReplyTo}
	}
	if req.QuoteTo != "" {
		payload["quote_tweet_id"] = req.QuoteTo
	}
	if len(req.MediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": req.MediaIDs}
	}
	headers := map[string]string{"Authorization": "Bearer " + t.bearerToken}
	body, _, err := postJSON(ctx, t.baseURL+"/tweets", headers, payload, 20)
	if err != nil {
		return "", err
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding x create-post response: %w", err)
	}
	return out.Data.ID, nil
}

func (t *XTransport) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + t.bearerToken}
	payload := map[string]any{"media_category": mediaCategory(mimeType), "media_bytes_len": len(data)}
	body, _, err := postJSON(ctx, t.baseURL+"/media/upload", headers, payload, 30)
	if err != nil {
		return "", err
	}
	var out struct {
		MediaID string `json:"media_id_string"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding x media-upload response: %w", err)
	}
	return out.MediaID, nil
}

func mediaCategory(mimeType string) string {
	if len(mimeType) >= 5 && mimeType[:5] == "video" {
		return "tweet_video"
	}
	return "tweet_image"
}
