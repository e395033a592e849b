// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package alert_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-watch/vigil/internal/alert"
	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := alert.NewTelegramWithBaseURL(srv.Client(), "bot-token", "12345", srv.URL)
	require.NoError(t, ch.Send(context.Background(), "gateway down"))

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotBody["chat_id"])
	assert.Equal(t, "gateway down", gotBody["text"])
	assert.Equal(t, "Markdown", gotBody["parse_mode"])
}

func TestTelegramSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ch := alert.NewTelegramWithBaseURL(srv.Client(), "bad", "12345", srv.URL)
	err := ch.Send(context.Background(), "x")

	require.Error(t, err)
	assert.True(t, vigilerr.HasCode(err, vigilerr.CodeChannelDeliveryFailure))
}

func TestTwilioSMSSend(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotForm map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch := alert.NewTwilioSMSWithBaseURL(srv.Client(), "ACxxx", "secret", "+15550100", "+15550111", srv.URL)
	require.NoError(t, ch.Send(context.Background(), "VIGIL: gateway down"))

	assert.Equal(t, "/2010-04-01/Accounts/ACxxx/Messages.json", gotPath)
	assert.Equal(t, "ACxxx", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, []string{"+15550111"}, gotForm["To"])
	assert.Equal(t, []string{"+15550100"}, gotForm["From"])
	assert.Equal(t, []string{"VIGIL: gateway down"}, gotForm["Body"])
}

func TestTwilioSMSSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := alert.NewTwilioSMSWithBaseURL(srv.Client(), "AC", "tok", "+1", "+2", srv.URL)
	err := ch.Send(context.Background(), "x")

	require.Error(t, err)
	assert.True(t, vigilerr.HasCode(err, vigilerr.CodeChannelDeliveryFailure))
}
