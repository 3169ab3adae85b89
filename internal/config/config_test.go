package config_test

import (
	"testing"
	"time"

	"github.com/matchtix/matchtix/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()

	t.Setenv("POSTGRES_USER", "matchtix")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "matchtix")
}

func TestNewDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldTTL)
	assert.Equal(t, time.Minute, cfg.Booking.SweepInterval)
	assert.False(t, cfg.Stripe.DemoMode)
}

func TestNewMissingPostgresUser(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_USER", "")

	_, err := config.New()
	require.Error(t, err)
}

func TestNewZeroSweepIntervalClamped(t *testing.T) {
	setRequired(t)
	t.Setenv("BOOKING_SWEEP_INTERVAL", "0s")
	t.Setenv("BOOKING_HOLD_TTL", "-5m")

	cfg, err := config.New()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Booking.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldTTL)
}

func TestNewInvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("BOOKING_SWEEP_INTERVAL", "soon")

	_, err := config.New()
	require.Error(t, err)
}
