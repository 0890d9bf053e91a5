package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalList_RequiresFilter(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "http://localhost:0", "journal", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--address or --session is required")
}

func TestJournalList_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "http://localhost:0", "journal", "list", "--address", "0.0.123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}

func TestJournalPrune_RequiresPositiveDuration(t *testing.T) {
	_, err := run(t, "http://localhost:0", "journal", "prune", "--older-than", "-1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestFormatOptional(t *testing.T) {
	hash := "0xabc"
	empty := ""
	assert.Equal(t, "0xabc", formatOptional(&hash))
	assert.Equal(t, "-", formatOptional(&empty))
	assert.Equal(t, "-", formatOptional(nil))
}
