package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/brojonat/genesis/service/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJournal struct {
	addressParams db.ListTransactionsByAddressParams
	sessionID     string
	limit, offset int32
	txns          []*db.Transaction
	err           error
}

func (f *fakeJournal) ListTransactionsByAddress(ctx context.Context, params db.ListTransactionsByAddressParams) ([]*db.Transaction, error) {
	f.addressParams = params
	return f.txns, f.err
}

func (f *fakeJournal) ListTransactionsBySession(ctx context.Context, sessionID string, limit, offset int32) ([]*db.Transaction, error) {
	f.sessionID, f.limit, f.offset = sessionID, limit, offset
	return f.txns, f.err
}

func TestListJournal_Disabled(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/journal?address=0.0.123456", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "journal is not enabled")
}

func TestListJournal(t *testing.T) {
	hash := "0xabc"
	journal := &fakeJournal{txns: []*db.Transaction{{
		ID:          "r1",
		SessionID:   "s1",
		Hash:        &hash,
		Kind:        "transfer",
		Status:      "Confirmed",
		Amount:      10,
		Currency:    "HBAR",
		FromAddress: "0.0.123456",
		ToAddress:   "0.0.999",
		Network:     "testnet",
		CreatedAt:   time.Now(),
		RecordedAt:  time.Now(),
	}}}
	env := newTestEnv(t, journal)

	resp, body := env.do(t, http.MethodGet, "/api/v1/journal?address=0.0.123456&network=testnet&limit=10&offset=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got struct {
		Transactions []db.Transaction `json:"transactions"`
		Count        int              `json:"count"`
		Limit        int32            `json:"limit"`
		Offset       int32            `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, int32(10), got.Limit)
	assert.Equal(t, int32(5), got.Offset)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "r1", got.Transactions[0].ID)
	assert.Equal(t, db.ListTransactionsByAddressParams{
		Address: "0.0.123456", Network: "testnet", Limit: 10, Offset: 5,
	}, journal.addressParams)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/journal?session_id=s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s1", journal.sessionID)
	assert.Equal(t, int32(100), journal.limit)
	assert.Equal(t, int32(0), journal.offset)
}

func TestListJournal_BadRequests(t *testing.T) {
	env := newTestEnv(t, &fakeJournal{})

	tests := []struct {
		query string
		want  string
	}{
		{"", "address or session_id query parameter is required"},
		{"?address=0.0.1&limit=abc", "invalid limit parameter"},
		{"?address=0.0.1&limit=0", "limit must be at least 1"},
		{"?address=0.0.1&limit=5000", "limit cannot exceed 1000"},
		{"?address=0.0.1&offset=-1", "offset cannot be negative"},
		{"?address=a%20b", "invalid characters"},
	}

	for _, tt := range tests {
		resp, body := env.do(t, http.MethodGet, "/api/v1/journal"+tt.query, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.query)
		assert.Contains(t, string(body), tt.want, tt.query)
	}
}

func TestListJournal_StoreError(t *testing.T) {
	env := newTestEnv(t, &fakeJournal{err: errors.New("connection refused")})

	resp, body := env.do(t, http.MethodGet, "/api/v1/journal?address=0.0.123456", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "internal server error")
}
