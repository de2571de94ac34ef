package postgres

import (
	"context"
	"os"
	"testing"

	"sjsage522/outletscraper/internal/crawler"
	"sjsage522/outletscraper/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running Postgres instance given by STORE_TEST_POSTGRES_DSN
func TestRepo_ReplaceAll(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STORE_TEST_POSTGRES_DSN is not set, skipping test")
	}

	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	outlets := []crawler.Outlet{
		{Name: "Subway Bangsar", Address: "Jalan Telawi", MapLink: "https://waze.com/ul?q=bangsar"},
		{Name: "Subway KLCC", Address: "Suria KLCC", OperatingHours: "10am - 10pm"},
	}
	require.NoError(t, s.ReplaceAll(ctx, outlets))
	require.NoError(t, s.ReplaceAll(ctx, outlets[1:]))

	rows, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, outlets[1], rows[0].Outlet)
	assert.Nil(t, rows[0].Latitude)
}
