// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers alerts to the operator's Telegram chat. It is the
// primary notification channel.
type Telegram struct {
	client  *http.Client
	token   string
	chatID  string
	baseURL string
}

// NewTelegram creates a Telegram channel with the given bot token and
// destination chat.
func NewTelegram(client *http.Client, token, chatID string) *Telegram {
	return &Telegram{client: client, token: token, chatID: chatID, baseURL: telegramAPIBase}
}

// NewTelegramWithBaseURL overrides the API host (for testing).
func NewTelegramWithBaseURL(client *http.Client, token, chatID, baseURL string) *Telegram {
	return &Telegram{client: client, token: token, chatID: chatID, baseURL: baseURL}
}

// Name identifies the channel in alert records.
func (t *Telegram) Name() string { return "telegram" }

// Send posts text via the bot sendMessage endpoint.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeChannelDeliveryFailure, "encoding Telegram payload")
	}

	url := t.baseURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeChannelDeliveryFailure, "building Telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeChannelDeliveryFailure, "sending Telegram message")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return vigilerr.Errorf(vigilerr.CodeChannelDeliveryFailure,
			"Telegram sendMessage failed (HTTP %d)", resp.StatusCode)
	}
	return nil
}
