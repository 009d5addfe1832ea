package platform

import (
	"context"
	"encoding/json"
	"fmt"
)

// LinkedInTransport drives the LinkedIn UGC posts API. LinkedIn has no
// native quote-post concept, so QuoteTo is folded into the text body by
// the caller before Write is invoked.
type LinkedInTransport struct {
	accessToken string
	authorURN   string
	baseURL     string
}

func NewLinkedInTransport(accessToken, authorURN string) *LinkedInTransport {
	return &LinkedInTransport{accessToken: accessToken, authorURN: authorURN, baseURL: "https://api.linkedin.com/v2"}
}

func (t *LinkedInTransport) Name() string { return "linkedin" }

func (t *LinkedInTransport) CreatePost(ctx context.Context, req WriteRequest) (string, error) {
	payload := map[string]any{
		"author":         t.authorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": req.Text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
	headers := map[string]string{
		"Authorization":           "Bearer " + t.accessToken,
		"X-Restli-Protocol-Version": "2.0.0",
	}
	body, _, err := postJSON(ctx, t.baseURL+"/ugcPosts", headers, payload, 20)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding linkedin ugcPosts response: %w", err)
	}
	return out.ID, nil
}

func (t *LinkedInTransport) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + t.accessToken}
	payload := map[string]any{
		"registerUploadRequest": map[string]any{
			"owner":    t.authorURN,
			"bytesLen": len(data),
			"mimeType": mimeType,
		},
	}
	body, _, err := postJSON(ctx, t.baseURL+"/assets?action=registerUpload", headers, payload, 30)
	if err != nil {
		return "", err
	}
	var out struct {
		Value struct {
			Asset string `json:"asset"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding linkedin asset-register response: %w", err)
	}
	return out.Value.Asset, nil
}
