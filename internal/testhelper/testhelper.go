// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

// Package testhelper holds shared helpers for the package tests.
package testhelper

import (
	"net/http"
	"os"
	"testing"
)

// IntegrationTestEnv is the environment variable that enables tests hitting live
// external APIs.
const IntegrationTestEnv = "MAPPICK_INTEGRATION_TESTS"

// MockRoundTripper satisfies http.RoundTripper with a caller-provided function, so
// tests can stub API responses without a network connection.
type MockRoundTripper struct {
	Fn func(req *http.Request) (*http.Response, error)
}

// RoundTrip implements the http.RoundTripper interface.
func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}

// PerformIntegrationTests skips the calling test unless integration tests are
// enabled via the environment.
func PerformIntegrationTests(t *testing.T) {
	t.Helper()
	if os.Getenv(IntegrationTestEnv) == "" {
		t.Skipf("skipping integration test, set %s to enable", IntegrationTestEnv)
	}
}
