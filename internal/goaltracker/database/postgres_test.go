package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/config"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestDB connects to an already migrated database named by GOALTRACKER_TEST_DSN.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("GOALTRACKER_TEST_DSN")
	if dsn == "" {
		t.Skip("GOALTRACKER_TEST_DSN is not set")
	}
	cfg := &config.Config{Storage: config.Storage{DSN: dsn, MaxConns: 4}}
	db, err := NewDB(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB) *types.User {
	t.Helper()
	user := &types.User{
		ID:        uuid.NewString(),
		Email:     uuid.NewString() + "@example.com",
		Password:  "hash",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func TestPostgres_CreateUserDuplicate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	dup := *user
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, db.CreateUser(context.Background(), &dup), ErrUserAlreadyExist)
}

func TestPostgres_GoalTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db)
	goal := &types.Goal{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		GameName:  "Destiny",
		GoalName:  "Finish raid",
		Deadline:  time.Now().Add(24 * time.Hour).UTC(),
		Status:    types.GoalStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateGoal(ctx, goal))

	boom := errors.New("boom")
	err := db.InGoalTx(ctx, func(tx GoalTx) error {
		require.NoError(t, tx.MarkGoalCompleted(ctx, goal.ID, time.Now()))
		_, err := tx.CreditTokens(ctx, user.ID, 10)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := db.GetGoalByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GoalStatusActive, stored.Status)
	storedUser, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, storedUser.Tokens)

	err = db.InGoalTx(ctx, func(tx GoalTx) error {
		if err := tx.MarkGoalCompleted(ctx, goal.ID, time.Now()); err != nil {
			return err
		}
		balance, err := tx.CreditTokens(ctx, user.ID, 10)
		assert.Equal(t, 10, balance)
		return err
	})
	require.NoError(t, err)
	stored, err = db.GetGoalByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GoalStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedDate)
}

func TestPostgres_GroupMembers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := createTestUser(t, db)
	member := createTestUser(t, db)
	group := &types.Group{
		ID:         uuid.NewString(),
		Name:       "raiders",
		CreatorID:  creator.ID,
		MaxMembers: 2,
		Members:    []types.Member{{UserID: creator.ID, Role: types.RoleAdmin, JoinedAt: time.Now().UTC()}},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.CreateGroup(ctx, group))

	err := db.InGroupTx(ctx, func(tx GroupTx) error {
		g, err := tx.GetGroupForUpdate(ctx, group.ID)
		if err != nil {
			return err
		}
		require.Len(t, g.Members, 1)
		assert.Equal(t, creator.Email, g.CreatorEmail)
		return tx.AddMember(ctx, g.ID, types.Member{UserID: member.ID, Role: types.RoleMember, JoinedAt: time.Now().UTC()})
	})
	require.NoError(t, err)

	stored, err := db.GetGroupByID(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, stored.Members, 2)
	assert.Equal(t, creator.ID, stored.Members[0].UserID)
	assert.Equal(t, creator.Email, stored.Members[0].Email)
	assert.Equal(t, types.RoleMember, stored.Members[1].Role)
	assert.Equal(t, member.Email, stored.Members[1].Email)

	groups, err := db.GetGroupsByMember(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
}
