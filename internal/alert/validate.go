// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package alert

import (
	"context"
	"io"
	"net/http"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// ValidateTelegramToken calls Telegram's getMe endpoint to verify the bot
// token before the daemon relies on it for alerting.
func ValidateTelegramToken(ctx context.Context, client *http.Client, token string) error {
	return validateTelegramTokenURL(ctx, client, telegramAPIBase+"/bot"+token+"/getMe")
}

func validateTelegramTokenURL(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeChannelTokenCheckFailed, "building Telegram validation request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeChannelTokenCheckFailed, "validating Telegram token")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return vigilerr.Errorf(vigilerr.CodeChannelTokenInvalid, "invalid Telegram bot token (HTTP %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return vigilerr.Errorf(vigilerr.CodeChannelTokenCheckFailed, "Telegram validation failed (HTTP %d)", resp.StatusCode)
	}

	return nil
}
