// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package alert

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioSMS delivers truncated critical alerts over SMS. It is the optional
// secondary channel.
type TwilioSMS struct {
	client     *http.Client
	accountSID string
	authToken  string
	from       string
	to         string
	baseURL    string
}

// NewTwilioSMS creates the SMS channel.
func NewTwilioSMS(client *http.Client, accountSID, authToken, from, to string) *TwilioSMS {
	return &TwilioSMS{
		client:     client,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		baseURL:    twilioAPIBase,
	}
}

// NewTwilioSMSWithBaseURL overrides the API host (for testing).
func NewTwilioSMSWithBaseURL(client *http.Client, accountSID, authToken, from, to, baseURL string) *TwilioSMS {
	s := NewTwilioSMS(client, accountSID, authToken, from, to)
	s.baseURL = baseURL
	return s
}

// Name identifies the channel in alert records.
func (s *TwilioSMS) Name() string { return "sms" }

// Send posts text as an outbound SMS via the Twilio Messages API.
func (s *TwilioSMS) Send(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("To", s.to)
	form.Set("From", s.from)
	form.Set("Body", text)

	endpoint := s.baseURL + "/2010-04-01/Accounts/" + s.accountSID + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeChannelDeliveryFailure, "building Twilio request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeChannelDeliveryFailure, "sending SMS")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return vigilerr.Errorf(vigilerr.CodeChannelDeliveryFailure,
			"Twilio message create failed (HTTP %d)", resp.StatusCode)
	}
	return nil
}
