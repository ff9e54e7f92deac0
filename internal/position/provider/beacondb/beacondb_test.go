// SPDX-FileCopyrightText: Tobias Versen <tv@tversen.dev>
//
// SPDX-License-Identifier: MIT

package beacondb

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/mdlayher/wifi"

	"github.com/tversen/mappick/internal/httpc"
	"github.com/tversen/mappick/internal/logger"
	"github.com/tversen/mappick/internal/testhelper"
)

const testResponse = `{
  "location": {
    "lat": 40.7185,
    "lng": -74.0025
  },
  "accuracy": 2000
}`

func TestNew(t *testing.T) {
	t.Run("without an http client creation fails", func(t *testing.T) {
		provider, err := New(nil)
		if err == nil {
			t.Fatal("expected provider creation to fail")
		}
		if provider != nil {
			t.Fatal("expected provider to be nil")
		}
	})
	t.Run("new beacondb provider succeeds", func(t *testing.T) {
		testRequiresWiFi(t)
		provider, err := New(testClient(t))
		if err != nil {
			t.Fatalf("failed to create beacondb provider: %s", err)
		}
		if provider == nil {
			t.Fatal("expected provider to be non-nil")
		}
		if !strings.EqualFold(provider.Name(), name) {
			t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
		}
	})
}

func TestPositionBeaconDBProvider_Locate(t *testing.T) {
	t.Run("lookup returns the API position", func(t *testing.T) {
		testRequiresWiFi(t)
		rtFn := func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				t.Fatalf("failed to read request body: %s", err)
			}
			if !strings.Contains(string(body), `"considerIp":true`) {
				t.Errorf("expected request to consider the client IP, got %q", string(body))
			}
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader(testResponse)),
				Header:     make(http.Header),
			}, nil
		}
		provider := testProvider(t, rtFn)

		fix, err := provider.Locate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if fix.Source != name {
			t.Errorf("expected fix source to be %q, got %q", name, fix.Source)
		}
		if fix.Coordinate.Lat != 40.7185 || fix.Coordinate.Lon != -74.0025 {
			t.Errorf("expected coordinate (40.7185, -74.0025), got %+v", fix.Coordinate)
		}
		if fix.Accuracy != 2000 {
			t.Errorf("expected accuracy 2000, got %f", fix.Accuracy)
		}
	})
	t.Run("transport failures propagate", func(t *testing.T) {
		testRequiresWiFi(t)
		provider := testProvider(t, func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection intentionally refused")
		})

		if _, err := provider.Locate(t.Context()); err == nil {
			t.Fatal("expected lookup to fail")
		}
	})
}

// This test depends on the WiFi hardware and the visible networks.
func TestPositionBeaconDBProvider_wifiAccessPoints(t *testing.T) {
	testRequiresWiFi(t)
	provider, err := New(testClient(t))
	if err != nil {
		t.Fatalf("failed to create beacondb provider: %s", err)
	}
	list, err := provider.wifiAccessPoints()
	if err != nil {
		t.Fatalf("failed to list WiFi access points: %s", err)
	}
	if len(list) == 0 {
		t.Skip("no WiFi access points found, test results are meaningless")
	}
	for _, network := range list {
		if network.MACAddress == "" {
			t.Error("expected every reported access point to carry a MAC address")
		}
	}
}

func testClient(t *testing.T) *httpc.Client {
	t.Helper()
	return httpc.New(logger.New(slog.LevelError))
}

func testProvider(t *testing.T, fn func(req *http.Request) (*http.Response, error)) *PositionBeaconDBProvider {
	t.Helper()
	client := testClient(t)
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	provider, err := New(client)
	if err != nil {
		t.Fatalf("failed to create beacondb provider: %s", err)
	}
	return provider
}

func testRequiresWiFi(t *testing.T) {
	t.Helper()
	wlan, err := wifi.New()
	if err != nil {
		t.Skip("system has no WiFi support, skipping WiFi related tests")
	}
	ifaces, err := wlan.Interfaces()
	if err != nil {
		t.Skip("no WiFi interfaces found, skipping WiFi related tests")
	}
	for _, iface := range ifaces {
		if iface.Type == wifi.InterfaceTypeStation {
			return
		}
	}
	t.Skip("no WiFi station interfaces found, skipping WiFi related tests")
}
