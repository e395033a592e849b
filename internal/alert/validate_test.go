// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

func TestValidateTelegramToken_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/bottest-token/getMe")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"id": 123}})
	}))
	defer srv.Close()

	err := validateTelegramTokenURL(context.Background(), srv.Client(), srv.URL+"/bottest-token/getMe")
	require.NoError(t, err)
}

func TestValidateTelegramToken_Failures(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantCode   vigilerr.Code
	}{
		{"401 unauthorized", http.StatusUnauthorized, vigilerr.CodeChannelTokenInvalid},
		{"403 forbidden", http.StatusForbidden, vigilerr.CodeChannelTokenInvalid},
		{"500 server error", http.StatusInternalServerError, vigilerr.CodeChannelTokenCheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			err := validateTelegramTokenURL(context.Background(), srv.Client(), srv.URL+"/botbad-token/getMe")
			require.Error(t, err)
			assert.True(t, vigilerr.HasCode(err, tt.wantCode),
				"expected %s, got %s", tt.wantCode, vigilerr.CodeOf(err))
		})
	}
}
