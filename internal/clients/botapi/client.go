package botapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yungbote/relaydesk-backend/internal/logger"
	"github.com/yungbote/relaydesk-backend/internal/transport"
	"github.com/yungbote/relaydesk-backend/internal/utils"
)

// Client talks to the chat-platform bot gateway over JSON/HTTP and
// implements transport.Messenger. Vendor error strings are mapped to
// machine-readable transport codes so callers never pattern-match on
// free text.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeoutSec := utils.GetEnvAsInt("BOTAPI_TIMEOUT_SECONDS", 15, log)
	return Config{
		BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("BOTAPI_BASE_URL")), "/"),
		Token:   strings.TrimSpace(os.Getenv("BOTAPI_TOKEN")),
		Timeout: time.Duration(timeoutSec) * time.Second,
	}
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (transport.Messenger, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing BOTAPI_BASE_URL")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("missing BOTAPI_TOKEN")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &client{
		log:  log.With("service", "BotAPIClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func NewFromEnv(log *logger.Logger) (transport.Messenger, error) {
	return New(log, ConfigFromEnv(log))
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *client) SendMessage(ctx context.Context, req transport.SendRequest) (*transport.Message, error) {
	body := map[string]interface{}{
		"chat_id": req.ChatID,
		"text":    req.Text,
	}
	if req.ThreadID != 0 {
		body["thread_id"] = req.ThreadID
	}
	if req.ReplyToID != 0 {
		body["reply_to_id"] = req.ReplyToID
	}
	if req.Silent {
		body["silent"] = true
	}
	if len(req.Actions) > 0 {
		body["actions"] = req.Actions
	}

	var msg transport.Message
	if err := c.call(ctx, "sendMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *client) SendMedia(ctx context.Context, req transport.SendRequest) (*transport.Message, error) {
	body := map[string]interface{}{
		"chat_id": req.ChatID,
		"kind":    string(req.Kind),
	}
	if req.FileID != "" {
		body["file_id"] = req.FileID
	}
	if len(req.PNG) > 0 {
		body["png_base64"] = base64.StdEncoding.EncodeToString(req.PNG)
	}
	if req.Caption != "" {
		body["caption"] = req.Caption
	}
	if req.ThreadID != 0 {
		body["thread_id"] = req.ThreadID
	}
	if req.ReplyToID != 0 {
		body["reply_to_id"] = req.ReplyToID
	}
	if req.Silent {
		body["silent"] = true
	}

	var msg transport.Message
	if err := c.call(ctx, "sendMedia", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *client) CreateThread(ctx context.Context, chatID int64, title string) (int64, error) {
	body := map[string]interface{}{
		"chat_id": chatID,
		"title":   title,
	}
	var result struct {
		ThreadID int64 `json:"thread_id"`
	}
	if err := c.call(ctx, "createThread", body, &result); err != nil {
		return 0, err
	}
	return result.ThreadID, nil
}

func (c *client) CloseThread(ctx context.Context, chatID, threadID int64) error {
	body := map[string]interface{}{
		"chat_id":   chatID,
		"thread_id": threadID,
	}
	return c.call(ctx, "closeThread", body, nil)
}

func (c *client) PinMessage(ctx context.Context, chatID, messageID int64) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	return c.call(ctx, "pinMessage", body, nil)
}

func (c *client) call(ctx context.Context, method string, body map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("botapi %s: encode: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.Token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("botapi %s: build request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &transport.Error{Code: transport.CodeUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &transport.Error{Code: transport.CodeUnavailable, Message: err.Error()}
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return &transport.Error{
			Code:    transport.CodeUnavailable,
			Message: fmt.Sprintf("%s: undecodable response (status %d)", method, resp.StatusCode),
		}
	}

	if !decoded.OK {
		return c.asTransportError(method, resp.StatusCode, decoded.Error)
	}
	if out != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("botapi %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *client) asTransportError(method string, status int, apiErr *apiError) error {
	msg := fmt.Sprintf("%s failed with status %d", method, status)
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	code := transport.CodeUnavailable
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "thread not found"), strings.Contains(lower, "topic not found"):
		code = transport.CodeThreadNotFound
	case strings.Contains(lower, "blocked by the user"), strings.Contains(lower, "chat not found"), strings.Contains(lower, "deactivated"):
		code = transport.CodeUserUnreachable
	case status >= 400 && status < 500:
		code = transport.CodeBadRequest
	}

	c.log.Debug("bot gateway call failed", "method", method, "status", status, "code", code, "message", msg)
	return &transport.Error{Code: code, Message: msg}
}
