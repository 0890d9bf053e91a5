package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/brojonat/genesis/service/db"
)

// JournalReader is the read side of the transaction journal.
type JournalReader interface {
	ListTransactionsByAddress(ctx context.Context, params db.ListTransactionsByAddressParams) ([]*db.Transaction, error)
	ListTransactionsBySession(ctx context.Context, sessionID string, limit, offset int32) ([]*db.Transaction, error)
}

// handleListJournal returns a handler that lists journaled transactions for
// an address or a session, newest first.
// GET /api/v1/journal?address=ADDRESS&network=NET&limit=N&offset=N
// GET /api/v1/journal?session_id=ID&limit=N&offset=N
func handleListJournal(journal JournalReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			writeError(w, "journal is not enabled", http.StatusNotFound)
			return
		}

		query := r.URL.Query()
		address := query.Get("address")
		sessionID := query.Get("session_id")

		if address == "" && sessionID == "" {
			writeError(w, "address or session_id query parameter is required", http.StatusBadRequest)
			return
		}
		if address != "" {
			if err := validateAddress(address); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		// Parse limit (default 100, max 1000)
		limit := int32(100)
		if limitStr := query.Get("limit"); limitStr != "" {
			var parsedLimit int
			if _, err := fmt.Sscanf(limitStr, "%d", &parsedLimit); err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedLimit < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsedLimit > 1000 {
				writeError(w, "limit cannot exceed 1000", http.StatusBadRequest)
				return
			}
			limit = int32(parsedLimit)
		}

		// Parse offset (default 0)
		offset := int32(0)
		if offsetStr := query.Get("offset"); offsetStr != "" {
			var parsedOffset int
			if _, err := fmt.Sscanf(offsetStr, "%d", &parsedOffset); err != nil {
				writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedOffset < 0 {
				writeError(w, "offset cannot be negative", http.StatusBadRequest)
				return
			}
			offset = int32(parsedOffset)
		}

		var (
			transactions []*db.Transaction
			err          error
		)
		if sessionID != "" {
			transactions, err = journal.ListTransactionsBySession(r.Context(), sessionID, limit, offset)
		} else {
			transactions, err = journal.ListTransactionsByAddress(r.Context(), db.ListTransactionsByAddressParams{
				Address: address,
				Network: query.Get("network"),
				Limit:   limit,
				Offset:  offset,
			})
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list journal", "address", address, "session_id", sessionID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if transactions == nil {
			transactions = []*db.Transaction{}
		}

		writeJSON(w, map[string]interface{}{
			"transactions": transactions,
			"count":        len(transactions),
			"limit":        limit,
			"offset":       offset,
		}, http.StatusOK)
	})
}
