// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by daemon
// commands. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// daemonClient provides HTTP access to a running vigil daemon.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

// newDaemonClient creates a client targeting the given host:port address.
func newDaemonClient(addr string) *daemonClient {
	return &daemonClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// Connection refused maps to CodeCLIDaemonNotRunning.
func (c *daemonClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return vigilerr.New(vigilerr.CodeCLIDaemonNotRunning, "vigil is not running (connection refused)")
		}
		return vigilerr.Wrap(err, vigilerr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return vigilerr.Errorf(vigilerr.CodeCLIRequestFailure, "vigil returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeCLIResponseInvalid, "invalid response")
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused,
// host unreachable, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
