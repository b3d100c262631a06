package controller

import (
	"context"
	"testing"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/config"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestController(t *testing.T) (*Controller, *database.MemoryDB) {
	t.Helper()
	db := database.NewMemoryDB()
	cfg := &config.Config{Auth: config.Auth{JWTSecret: "test-secret", TokenTTL: time.Hour}}
	c := NewController(cfg, db, db, db, db, db.Close)
	c.now = func() time.Time { return testNow }
	return c, db
}

func addUser(t *testing.T, db *database.MemoryDB, email string) *types.User {
	t.Helper()
	user := &types.User{ID: uuid.NewString(), Email: email, CreatedAt: testNow}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func tomorrow() string {
	return testNow.Add(24 * time.Hour).Format(time.RFC3339)
}
