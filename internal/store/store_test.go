package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-booking/internal/appointment"
	"github.com/hackgods/provider-booking/internal/config"
)

func TestOpenSQLite(t *testing.T) {
	cfg := config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "booking.db"),
	}

	s, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	assert.Equal(t, config.DriverSQLite, s.Driver)
	assert.NoError(t, s.Ping(context.Background()))

	u := &appointment.User{Name: "Dra. Paula", Email: "paula@example.com", IsProvider: true}
	require.NoError(t, s.CreateUser(context.Background(), u))

	got, err := s.FindProvider(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProvider)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreDriver: "mongo"}, zerolog.Nop())
	assert.Error(t, err)
}
