package share

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zhouzirui/z-ask/backend/internal/config"
	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
)

const (
	FromHuman = "human"
	FromGPT   = "gpt"
)

// Item is one turn of a shared conversation.
type Item struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

type shareRequest struct {
	AvatarURL string `json:"avatarUrl"`
	Items     []Item `json:"items"`
}

type shareResponse struct {
	ID string `json:"id"`
}

// Client uploads conversations to the sharing service.
type Client struct {
	endpoint   string
	baseURL    string
	avatarURL  string
	httpClient *http.Client
}

// NewClient builds a client from cfg.
func NewClient(cfg config.ShareConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		avatarURL: cfg.AvatarURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Items converts answers into alternating human and gpt turns.
func Items(answers []answer.Answer) []Item {
	items := make([]Item, 0, len(answers)*2)
	for _, a := range answers {
		items = append(items,
			Item{From: FromHuman, Value: a.Question},
			Item{From: FromGPT, Value: a.Text()},
		)
	}
	return items
}

// Share uploads answers and returns the public link.
func (c *Client) Share(ctx context.Context, answers []answer.Answer) (string, error) {
	jsonBody, err := json.Marshal(shareRequest{
		AvatarURL: c.avatarURL,
		Items:     Items(answers),
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal share request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", errors.Wrap(err, "create share request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "share request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrapf(err, "read share response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("share api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var shareResp shareResponse
	if err := json.Unmarshal(body, &shareResp); err != nil {
		return "", errors.Wrap(err, "parse share response")
	}
	if shareResp.ID == "" {
		return "", errors.New("share api returned no id")
	}

	return c.baseURL + "/" + shareResp.ID, nil
}
