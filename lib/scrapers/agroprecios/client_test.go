package agroprecios

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agroprecios-harvester/lib/telemetry"
	"agroprecios-harvester/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"sub": r.URL.Query().Get("sub"),
			"fec": r.URL.Query().Get("fec"),
			"op":  r.URL.Query().Get("op"),
		}
		w.Write([]byte(fullPageFixture))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{
		BaseUrl: server.URL,
		Delay:   time.Millisecond,
	})
	require.NoError(t, err)

	day, err := timezone.ParseQueryDate("25/02/2026")
	require.NoError(t, err)

	raw, err := client.Fetch(context.Background(), 3, day)
	require.NoError(t, err)
	require.Equal(t, fullPageFixture, string(raw))
	require.Equal(t, map[string]string{
		"sub": "3",
		"fec": "25/02/2026",
		"op":  "1",
	}, gotQuery)
}

func TestFetchHttpError(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL, Delay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), 1, timezone.Now())
	require.Error(t, err)
}

func TestFetchTransportError(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL, Delay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), 1, timezone.Now())
	require.Error(t, err)
}

func TestFetchCancelledWhilePacing(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	client, err := NewClient(ClientOptions{BaseUrl: "http://127.0.0.1:1", Delay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Fetch(ctx, 1, timezone.Now())
	require.ErrorIs(t, err, context.Canceled)
}
