package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCommand_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.Run([]string{"genesis", "--server-url", server.URL, "server", "health"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Server is healthy")
}

func TestHealthCommand_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	app := newApp()
	err := app.Run([]string{"genesis", "--server-url", server.URL, "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHealthCommand_Unreachable(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"genesis", "--server-url", "http://127.0.0.1:1", "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"genesis", "server", "version"}))
	assert.Contains(t, out.String(), "Version: dev")
}
