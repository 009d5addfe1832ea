package platform

import (
	"context"
	"encoding/json"
	"fmt"
)

// MastodonTransport drives a single Mastodon instance's REST API.
type MastodonTransport struct {
	instanceURL string
	accessToken string
}

func NewMastodonTransport(instanceURL, accessToken string) *MastodonTransport {
	return &MastodonTransport{instanceURL: instanceURL, accessToken: accessToken}
}

func (t *MastodonTransport) Name() string { return "mastodon" }

func (t *MastodonTransport) CreatePost(ctx context.Context, req WriteRequest) (string, error) {
	payload := map[string]any{"status": req.Text, "visibility": "public"}
	if req.InReplyTo != "" {
		payload["in_reply_to_id"] = req.InReplyTo
	}
	if len(req.MediaIDs) > 0 {
		payload["media_ids"] = req.MediaIDs
	}
	headers := map[string]string{"Authorization": "Bearer " + t.accessToken}
	body, _, err := postJSON(ctx, t.instanceURL+"/api/v1/statuses", headers, payload, 20)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding mastodon create-status response: %w", err)
	}
	return out.ID, nil
}

func (t *MastodonTransport) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + t.accessToken}
	payload := map[string]any{"mime_type": mimeType, "bytes_len": len(data)}
	body, _, err := postJSON(ctx, t.instanceURL+"/api/v2/media", headers, payload, 30)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding mastodon media response: %w", err)
	}
	return out.ID, nil
}
