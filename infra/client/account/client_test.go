package account

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchDetailsReturnsProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/account-service/users/details", r.URL.Path)
		require.Equal(t, "P1", r.URL.Query().Get("identifier"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"identifier":"P1","nickname":"Alice","email":"alice@example.com","photo_url":"https://cdn.example.com/P1.png"}`)
	}))
	defer server.Close()

	client, err := New(server.URL, discardLogger())
	require.NoError(t, err)

	details, err := client.FetchDetails(context.Background(), "P1")
	require.NoError(t, err)
	require.Equal(t, "P1", details.Identifier)
	require.Equal(t, "Alice", details.Nickname)
	require.Equal(t, "alice@example.com", details.Email)
	require.Equal(t, "https://cdn.example.com/P1.png", details.PhotoURL)
}

func TestFetchDetailsCachesRepeatLookups(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"identifier":"P1","nickname":"Alice","email":"alice@example.com","photo_url":""}`)
	}))
	defer server.Close()

	client, err := New(server.URL, discardLogger())
	require.NoError(t, err)

	first, err := client.FetchDetails(context.Background(), "P1")
	require.NoError(t, err)
	second, err := client.FetchDetails(context.Background(), "P1")
	require.NoError(t, err)

	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, first.Nickname, second.Nickname)

	// Cached results are copies; mutating one must not poison the cache.
	second.Nickname = "Mallory"
	third, err := client.FetchDetails(context.Background(), "P1")
	require.NoError(t, err)
	require.Equal(t, "Alice", third.Nickname)
}

func TestFetchDetailsUnknownParticipant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such user", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := New(server.URL, discardLogger())
	require.NoError(t, err)

	_, err = client.FetchDetails(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestFetchDetailsBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(server.URL, discardLogger())
	require.NoError(t, err)

	for i := 0; i < breakerTripAfter; i++ {
		_, err := client.FetchDetails(context.Background(), fmt.Sprintf("P%d", i))
		require.Error(t, err)
	}

	// The breaker is open now; the next lookup never reaches the wire.
	_, err = client.FetchDetails(context.Background(), "P-final")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, int32(breakerTripAfter), hits.Load())
}

func TestFetchDetailsPreservesBasePath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gateway/api/v1/account-service/users/details", r.URL.Path)
		fmt.Fprint(w, `{"identifier":"P1","nickname":"Alice","email":"","photo_url":""}`)
	}))
	defer server.Close()

	client, err := New(server.URL+"/gateway", discardLogger())
	require.NoError(t, err)

	_, err = client.FetchDetails(context.Background(), "P1")
	require.NoError(t, err)
}
