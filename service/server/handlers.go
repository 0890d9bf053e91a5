package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/brojonat/genesis/service/session"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // Solana addresses are 44 chars, Hedera ids far shorter
)

// sendTransactionRequest is the body of POST /api/v1/sessions/{id}/transactions.
type sendTransactionRequest struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// sendTransactionResponse is returned for a confirmed transfer.
type sendTransactionResponse struct {
	Hash    string           `json:"hash"`
	Session session.Snapshot `json:"session"`
}

// errorResponse carries the session state alongside the error when the
// failed operation changed it.
type errorResponse struct {
	Error   string            `json:"error"`
	Hash    string            `json:"hash,omitempty"`
	Session *session.Snapshot `json:"session,omitempty"`
}

// handleCreateSession returns a handler that creates a disconnected session.
// POST /api/v1/sessions
func handleCreateSession(registry *session.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, err := registry.Create()
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create session", "error", err)
			writeError(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "session created", "session_id", store.ID())
		writeJSON(w, store.Snapshot(), http.StatusCreated)
	})
}

// handleListSessions returns a handler that lists session ids.
// GET /api/v1/sessions
func handleListSessions(registry *session.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := registry.IDs()
		writeJSON(w, map[string]interface{}{
			"sessions": ids,
			"count":    len(ids),
		}, http.StatusOK)
	})
}

// handleGetSession returns a handler that reports a session snapshot.
// GET /api/v1/sessions/{id}
func handleGetSession(registry *session.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := lookupSession(w, r, registry)
		if !ok {
			return
		}
		writeJSON(w, store.Snapshot(), http.StatusOK)
	})
}

// handleDeleteSession returns a handler that disconnects and removes a session.
// DELETE /api/v1/sessions/{id}
func handleDeleteSession(registry *session.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := registry.Remove(id); err != nil {
			writeSessionError(w, err, nil)
			return
		}

		logger.InfoContext(r.Context(), "session removed", "session_id", id)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleConnect returns a handler that performs the wallet handshake.
// POST /api/v1/sessions/{id}/connect
func handleConnect(registry *session.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := lookupSession(w, r, registry)
		if !ok {
			return
		}

		snap, err := store.Connect(r.Context())
		if err != nil {
			logger.DebugContext(r.Context(), "connect failed", "session_id", store.ID(), "error", err)
			writeSessionError(w, err, &snap)
			return
		}

		writeJSON(w, snap, http.StatusOK)
	})
}

// handleDisconnect returns a handler that resets a session.
// POST /api/v1/sessions/{id}/disconnect
func handleDisconnect(registry *session.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := lookupSession(w, r, registry)
		if !ok {
			return
		}

		snap := store.Disconnect()
		logger.DebugContext(r.Context(), "session disconnected", "session_id", store.ID())
		writeJSON(w, snap, http.StatusOK)
	})
}

// handleSendTransaction returns a handler that transfers funds and blocks
// until the transfer settles.
// POST /api/v1/sessions/{id}/transactions
func handleSendTransaction(registry *session.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := lookupSession(w, r, registry)
		if !ok {
			return
		}

		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req sendTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.DebugContext(r.Context(), "failed to decode transaction request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.To); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		hash, err := store.SendTransaction(r.Context(), req.To, req.Amount)
		snap := store.Snapshot()
		if err != nil {
			logger.DebugContext(r.Context(), "transaction failed",
				"session_id", store.ID(),
				"to", req.To,
				"amount", req.Amount,
				"error", err,
			)
			writeSessionErrorWithHash(w, err, hash, &snap)
			return
		}

		writeJSON(w, sendTransactionResponse{Hash: hash, Session: snap}, http.StatusCreated)
	})
}

// handleRefreshBalance returns a handler that refetches the balance.
// POST /api/v1/sessions/{id}/balance/refresh
func handleRefreshBalance(registry *session.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := lookupSession(w, r, registry)
		if !ok {
			return
		}

		if err := store.RefreshBalance(r.Context()); err != nil {
			logger.DebugContext(r.Context(), "balance refresh failed", "session_id", store.ID(), "error", err)
			snap := store.Snapshot()
			writeSessionError(w, err, &snap)
			return
		}

		writeJSON(w, store.Snapshot(), http.StatusOK)
	})
}

// lookupSession resolves the {id} path value, writing a 404 when unknown.
func lookupSession(w http.ResponseWriter, r *http.Request, registry *session.Registry) (*session.Store, bool) {
	store, err := registry.Get(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, err, nil)
		return nil, false
	}
	return store, true
}

// statusForError maps session errors to HTTP status codes. Sentinels are
// checked before the wrapping error types.
func statusForError(err error) int {
	var (
		insufficient *session.InsufficientBalanceError
		connErr      *session.ConnectionError
		refreshErr   *session.RefreshError
		txErr        *session.TransactionError
	)

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrInvalidAmount), errors.Is(err, session.ErrInvalidRecipient):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrConnectInProgress),
		errors.Is(err, session.ErrAlreadyConnected),
		errors.Is(err, session.ErrNotConnected),
		errors.Is(err, session.ErrSessionReset),
		errors.Is(err, session.ErrTransferInFlight):
		return http.StatusConflict
	case errors.As(err, &connErr), errors.As(err, &refreshErr), errors.As(err, &txErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeSessionError(w http.ResponseWriter, err error, snap *session.Snapshot) {
	writeSessionErrorWithHash(w, err, "", snap)
}

func writeSessionErrorWithHash(w http.ResponseWriter, err error, hash string, snap *session.Snapshot) {
	writeJSON(w, errorResponse{
		Error:   err.Error(),
		Hash:    hash,
		Session: snap,
	}, statusForError(err))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a recipient or query address. The session
// itself rejects empty recipients; this guards the transport.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes, control characters and whitespace
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) || unicode.IsSpace(r) {
			return errorf("invalid characters in address: control characters and whitespace not allowed")
		}
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
