package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramClient определяет интерфейс для работы с Telegram Bot API.
// Это позволяет легко создавать моки для тестирования.
type TelegramClient interface {
	SendMessage(ctx context.Context, chatID string, text string, parseMode string) error
	SendPhoto(ctx context.Context, chatID string, photoURL string, caption string, parseMode string) error
	SendVideo(ctx context.Context, chatID string, videoURL string, caption string, parseMode string) error
}

// Client инкапсулирует работу с Telegram Bot API.
type Client struct {
	token  string
	client *http.Client
	apiURL string
}

// Убеждаемся, что Client реализует интерфейс TelegramClient.
var _ TelegramClient = (*Client)(nil)

// NewClient создаёт клиента. token обязателен.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		apiURL: fmt.Sprintf("https://api.telegram.org/bot%s", token),
	}
}

// SendMessage отправляет текстовое сообщение.
func (c *Client) SendMessage(ctx context.Context, chatID string, text string, parseMode string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	return c.post(ctx, "sendMessage", payload)
}

// SendPhoto отправляет фото по URL с подписью.
func (c *Client) SendPhoto(ctx context.Context, chatID string, photoURL string, caption string, parseMode string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"photo":   photoURL,
		"caption": caption,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	return c.post(ctx, "sendPhoto", payload)
}

// SendVideo отправляет видео по URL с подписью.
func (c *Client) SendVideo(ctx context.Context, chatID string, videoURL string, caption string, parseMode string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"video":   videoURL,
		"caption": caption,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	return c.post(ctx, "sendVideo", payload)
}

// post отправляет запрос и разбирает ответ API. Описание ошибки из
// ответа попадает в текст error: по нему Deliverer решает, имеет ли
// смысл повторять отправку.
func (c *Client) post(ctx context.Context, method string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("telegram api status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode telegram response: %w", decodeErr)
	}

	if !apiResp.OK {
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, apiResp.Description)
	}
	return nil
}
