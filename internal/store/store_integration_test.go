//go:build integration

// Run against a live PostgreSQL with:
//
//	go test -v -tags=integration ./internal/store/...
package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "dispersion_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "dispersion"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func TestStoreRoundTripPostgres(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	s := New(db, nil)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrations must be idempotent")

	report := &Report{
		Kind:      "batch",
		RequestID: "it-req-1",
		Parts:     3,
		Words:     1,
		Indices:   []dispersion.Index{dispersion.IndexDP, dispersion.IndexRange},
		Records: []batch.Record{{
			Position: 0,
			Word:     "the",
			Values: map[dispersion.Index]float64{
				dispersion.IndexDP:    0.25,
				dispersion.IndexRange: 2,
			},
		}},
	}
	require.NoError(t, s.Save(ctx, report))
	require.NotEmpty(t, report.ID)

	got, err := s.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Kind, got.Kind)
	assert.Equal(t, report.RequestID, got.RequestID)
	assert.Equal(t, report.Indices, got.Indices)
	require.Len(t, got.Records, 1)
	assert.InDelta(t, 0.25, got.Records[0].Values[dispersion.IndexDP], 0)

	summaries, err := s.List(ctx, 100)
	require.NoError(t, err)
	var found bool
	for _, sum := range summaries {
		found = found || sum.ID == report.ID
	}
	assert.True(t, found)

	_, err = s.Get(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
