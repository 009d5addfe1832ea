package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const sourceTimeout = 15 * time.Second

func getJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	client := &http.Client{Timeout: sourceTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(bytes.NewReader(data)).Decode(out)
}

// xAPIUser is the shape of X API v2's "includes.users" entry this package
// cares about.
type xAPIUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Verified        bool   `json:"verified"`
	PublicMetrics   struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

type xAPITweet struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"author_id"`
}

type xAPIResponse struct {
	Data []xAPITweet `json:"data"`
	Includes struct {
		Users []xAPIUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		NewestID    string `json:"newest_id"`
	} `json:"meta"`
}

func authorityHint(users []xAPIUser, authorID string) float64 {
	for _, u := range users {
		if u.ID != authorID {
			continue
		}
		hint := float64(u.PublicMetrics.FollowersCount) / 1000
		if u.Verified {
			hint += 10
		}
		if hint > 100 {
			hint = 100
		}
		return hint
	}
	return 0
}

func toTextItems(resp xAPIResponse) []TextItem {
	items := make([]TextItem, 0, len(resp.Data))
	for _, tw := range resp.Data {
		items = append(items, TextItem{
			Text:          tw.Text,
			AuthorityHint: authorityHint(resp.Includes.Users, tw.AuthorID),
		})
	}
	return items
}

// XMentionsSource fetches new mentions of the authenticated account since
// the last cursor, via GET /2/users/:id/mentions (§4.9 "X mentions").
type XMentionsSource struct {
	BearerToken string
	UserID      string
	BaseURL     string // defaults to https://api.x.com/2
}

func (s *XMentionsSource) Name() string { return "x_mentions" }

func (s *XMentionsSource) Fetch(ctx context.Context, cursors Cursors, limit int) (FetchResult, error) {
	base := s.baseURL()
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clampBetween(limit, 5, 100)))
	q.Set("tweet.fields", "author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "public_metrics,verified")
	if cursors.XMentionsSinceID != "" {
		q.Set("since_id", cursors.XMentionsSinceID)
	}
	rawURL := fmt.Sprintf("%s/users/%s/mentions?%s", base, s.UserID, q.Encode())

	var resp xAPIResponse
	if err := getJSON(ctx, rawURL, s.headers(), &resp); err != nil {
		return FetchResult{}, fmt.Errorf("x_mentions: %w", err)
	}
	return FetchResult{Texts: toTextItems(resp), NewSinceID: resp.Meta.NewestID}, nil
}

func (s *XMentionsSource) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://api.x.com/2"
}

func (s *XMentionsSource) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.BearerToken}
}

// XTimelineSource fetches the authenticated account's reverse-chronological
// home timeline (§4.9 "home timeline").
type XTimelineSource struct {
	BearerToken string
	UserID      string
	BaseURL     string
}

func (s *XTimelineSource) Name() string { return "x_timeline" }

func (s *XTimelineSource) Fetch(ctx context.Context, cursors Cursors, limit int) (FetchResult, error) {
	base := s.baseURL()
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clampBetween(limit, 5, 100)))
	q.Set("tweet.fields", "author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "public_metrics,verified")
	if cursors.XTimelineToken != "" {
		q.Set("pagination_token", cursors.XTimelineToken)
	}
	rawURL := fmt.Sprintf("%s/users/%s/timelines/reverse_chronological?%s", base, s.UserID, q.Encode())

	var resp xAPIResponse
	if err := getJSON(ctx, rawURL, s.headers(), &resp); err != nil {
		return FetchResult{}, fmt.Errorf("x_timeline: %w", err)
	}
	return FetchResult{Texts: toTextItems(resp), NewToken: resp.Meta.NextToken}, nil
}

func (s *XTimelineSource) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://api.x.com/2"
}

func (s *XTimelineSource) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.BearerToken}
}

// KeywordSearchSource fetches recent tweets matching a fixed keyword set
// via the recent-search endpoint, used as both the trends source and a
// per-voice timeline lookup (§4.9 "trending topics", "whitelisted voices").
type KeywordSearchSource struct {
	BearerToken string
	Query       string
	BaseURL     string
}

func (s *KeywordSearchSource) Name() string { return "x_search:" + s.Query }

func (s *KeywordSearchSource) Fetch(ctx context.Context, cursors Cursors, limit int) (FetchResult, error) {
	base := s.baseURL()
	q := url.Values{}
	q.Set("query", s.Query)
	q.Set("max_results", strconv.Itoa(clampBetween(limit, 10, 100)))
	q.Set("tweet.fields", "author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "public_metrics,verified")
	rawURL := fmt.Sprintf("%s/tweets/search/recent?%s", base, q.Encode())

	var resp xAPIResponse
	if err := getJSON(ctx, rawURL, s.headers(), &resp); err != nil {
		return FetchResult{}, fmt.Errorf("x_search: %w", err)
	}
	return FetchResult{Texts: toTextItems(resp)}, nil
}

func (s *KeywordSearchSource) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://api.x.com/2"
}

func (s *KeywordSearchSource) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.BearerToken}
}

// VoiceTimelineSource wraps a per-username search (from:username) so each
// whitelisted voice can be polled with its own cursor.
type VoiceTimelineSource struct {
	BearerToken string
	Username    string
	BaseURL     string
}

func (s *VoiceTimelineSource) Name() string { return "voice:" + s.Username }

func (s *VoiceTimelineSource) Fetch(ctx context.Context, cursors Cursors, limit int) (FetchResult, error) {
	base := s.baseURL()
	q := url.Values{}
	q.Set("query", "from:"+s.Username)
	q.Set("max_results", strconv.Itoa(clampBetween(limit, 5, 100)))
	q.Set("tweet.fields", "author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "public_metrics,verified")
	if tok, ok := cursors.VoiceCursors[s.Username]; ok && tok != "" {
		q.Set("since_id", tok)
	}
	rawURL := fmt.Sprintf("%s/tweets/search/recent?%s", base, q.Encode())

	var resp xAPIResponse
	if err := getJSON(ctx, rawURL, s.headers(), &resp); err != nil {
		return FetchResult{}, fmt.Errorf("voice_timeline: %w", err)
	}
	result := FetchResult{Texts: toTextItems(resp)}
	if resp.Meta.NewestID != "" {
		result.VoiceCursors = map[string]string{s.Username: resp.Meta.NewestID}
	}
	return result, nil
}

func (s *VoiceTimelineSource) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://api.x.com/2"
}

func (s *VoiceTimelineSource) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.BearerToken}
}

func clampBetween(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
