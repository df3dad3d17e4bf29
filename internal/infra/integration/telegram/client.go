package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/usecase"
)

const DefaultBaseURL = "https://api.telegram.org"

// Client posts lead notifications to a single operator chat through the Bot
// API sendMessage method.
type Client struct {
	botToken   string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(botToken, chatID, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		botToken:   botToken,
		chatID:     chatID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c.botToken != "" && c.chatID != ""
}

// Send formats the lead and delivers it. It reports false on any failure,
// including missing credentials.
func (c *Client) Send(ctx context.Context, n usecase.LeadNotification) bool {
	if !c.Configured() {
		zap.L().Warn("telegram: bot token or chat id not configured",
			zap.Bool("has_token", c.botToken != ""),
			zap.Bool("has_chat_id", c.chatID != ""),
		)
		return false
	}

	text := FormatLeadMessage(n)
	zap.L().Info("telegram: sending lead",
		zap.String("chat_id", c.chatID),
		zap.Int("message_length", len(text)),
		zap.Bool("has_lead", n.Lead != nil),
	)

	res, err := c.SendMessage(ctx, SendMessageRequest{ChatID: c.chatID, Text: text})
	if err != nil {
		zap.L().Error("telegram: send lead failed", zap.Error(err))
		return false
	}

	var messageID int64
	if res.Result != nil {
		messageID = res.Result.MessageID
	}
	zap.L().Info("telegram: lead sent", zap.Int64("message_id", messageID))
	return true
}

// SendMessage calls sendMessage and returns the decoded response. A reply
// with ok=false is an error.
func (c *Client) SendMessage(ctx context.Context, input SendMessageRequest) (*SendMessageResponse, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: marshal request")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "telegram: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of logs.
		return nil, eris.New("telegram: request failed: " + redact(err.Error(), c.botToken))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var result SendMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrapf(err, "telegram: decode response (status %d)", resp.StatusCode)
	}

	if !result.OK {
		return &result, eris.Errorf("telegram: api error %d: %s", result.ErrorCode, result.Description)
	}
	return &result, nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
