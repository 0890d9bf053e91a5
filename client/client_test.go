package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/genesis/service/server"
	"github.com/brojonat/genesis/service/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/sessions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(session.Snapshot{SessionID: "s1", Status: session.StatusDisconnected, Network: "testnet"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", nil, nil)
	snap, err := client.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, session.StatusDisconnected, snap.Status)
}

func TestSendTransaction_Request(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/sessions/s1/transactions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0.0.999", body["to"])
		assert.Equal(t, 12.5, body["amount"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hash":    "0xabc",
			"session": session.Snapshot{SessionID: "s1", Balance: 87.5},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	result, err := client.SendTransaction(context.Background(), "s1", "0.0.999", 12.5)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", result.Hash)
	assert.Equal(t, 87.5, result.Session.Balance)
}

func TestErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   "session was reset while the operation was in flight",
			"hash":    "0xabc",
			"session": session.Snapshot{SessionID: "s1", Status: session.StatusDisconnected},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	_, err := client.SendTransaction(context.Background(), "s1", "0.0.999", 1)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "0xabc", apiErr.Hash)
	require.NotNil(t, apiErr.Session)
	assert.Equal(t, session.StatusDisconnected, apiErr.Session.Status)
	assert.True(t, IsStatus(err, http.StatusConflict))
	assert.Contains(t, err.Error(), "session was reset")
}

func TestErrorResponse_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestJournal_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/journal", r.URL.Path)
		assert.Equal(t, "0.0.123456", r.URL.Query().Get("address"))
		assert.Equal(t, "testnet", r.URL.Query().Get("network"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"transactions": []map[string]interface{}{{"id": "r1", "status": "Confirmed", "amount": 10}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil)
	txns, err := client.Journal(context.Background(), JournalQuery{Address: "0.0.123456", Network: "testnet", Limit: 25})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "r1", txns[0].ID)
	assert.Equal(t, 10.0, txns[0].Amount)
}

// TestClient_AgainstServer drives a real server end to end.
func TestClient_AgainstServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := session.NewMockProvider(session.Account{
		Address: "0.0.123456", Balance: 1000.5, Network: "testnet", Currency: "HBAR",
	})
	registry := session.NewRegistry(func() (session.Provider, error) {
		return provider, nil
	}, session.Options{Logger: logger})

	srv := httptest.NewServer(server.New(":0", registry, nil, nil, logger).Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(registry.Close)

	ctx := context.Background()
	client := NewClient(srv.URL, srv.Client(), logger)

	require.NoError(t, client.Health(ctx))

	snap, err := client.CreateSession(ctx)
	require.NoError(t, err)
	id := snap.SessionID

	ids, err := client.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	// Follow the stream while the session changes.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan StreamEvent, 16)
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- client.Stream(streamCtx, id, func(ev StreamEvent) error {
			events <- ev
			return nil
		})
	}()
	first := <-events
	assert.Equal(t, "snapshot", first.Name)

	_, err = client.SendTransaction(ctx, id, "0.0.999", 10)
	assert.True(t, IsStatus(err, http.StatusConflict), "send before connect: %v", err)

	snap, err = client.Connect(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.StatusConnected, snap.Status)

	_, err = client.Connect(ctx, id)
	assert.True(t, IsStatus(err, http.StatusConflict))

	_, err = client.SendTransaction(ctx, id, "0.0.999", 5000)
	assert.True(t, IsStatus(err, http.StatusUnprocessableEntity))

	result, err := client.SendTransaction(ctx, id, "0.0.999", 500)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Hash)
	assert.Equal(t, 500.5, result.Session.Balance)

	provider.SetBalance(777)
	snap, err = client.RefreshBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 777.0, snap.Balance)

	snap, err = client.Disconnect(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.StatusDisconnected, snap.Status)

	_, err = client.Journal(ctx, JournalQuery{Address: "0.0.123456"})
	assert.True(t, IsStatus(err, http.StatusNotFound), "journal disabled")

	require.NoError(t, client.DeleteSession(ctx, id))
	_, err = client.GetSession(ctx, id)
	assert.True(t, IsStatus(err, http.StatusNotFound))

	// The stream ends with the session's close event.
	var kinds []session.EventKind
	var last StreamEvent
	timeout := time.After(5 * time.Second)
	for last.Name != "closed" {
		select {
		case last = <-events:
			if last.Name == "session" {
				var ev session.Event
				require.NoError(t, json.Unmarshal(last.Data, &ev))
				kinds = append(kinds, ev.Kind)
			}
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
	require.NoError(t, <-streamDone)

	assert.Equal(t, []session.EventKind{
		session.EventConnecting,
		session.EventConnected,
		session.EventTransactionPending,
		session.EventTransactionConfirmed,
		session.EventBalanceRefreshed,
		session.EventDisconnected,
	}, kinds)
}
