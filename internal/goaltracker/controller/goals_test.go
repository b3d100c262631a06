package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPersonalGoal(t *testing.T, c *Controller, ownerID string) *types.Goal {
	t.Helper()
	goal, err := c.CreateGoal(context.Background(), &types.CreateGoalRequest{
		GameName: "Destiny 2",
		GoalName: "Finish raid",
		Deadline: tomorrow(),
	}, ownerID)
	require.NoError(t, err)
	return goal
}

func balanceOf(t *testing.T, db *database.MemoryDB, userID string) int {
	t.Helper()
	user, err := db.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Tokens
}

func TestCreateGoal(t *testing.T) {
	c, db := newTestController(t)
	user := addUser(t, db, "u@example.com")

	goal := createPersonalGoal(t, c, user.ID)
	assert.Equal(t, types.GoalStatusActive, goal.Status)
	assert.Nil(t, goal.CompletedDate)
	assert.Nil(t, goal.GroupID)
	assert.Equal(t, testNow, goal.CreatedAt)

	stored, err := db.GetGoalByID(context.Background(), goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Finish raid", stored.GoalName)
}

func TestCreateGoalValidation(t *testing.T) {
	c, db := newTestController(t)
	user := addUser(t, db, "u@example.com")

	cases := map[string]*types.CreateGoalRequest{
		"missing game name":        {GoalName: "g", Deadline: tomorrow()},
		"missing goal name":        {GameName: "g", Deadline: tomorrow()},
		"missing deadline":         {GameName: "g", GoalName: "g"},
		"malformed deadline":       {GameName: "g", GoalName: "g", Deadline: "next week"},
		"past deadline":            {GameName: "g", GoalName: "g", Deadline: testNow.Add(-time.Hour).Format(time.RFC3339)},
		"deadline is now":          {GameName: "g", GoalName: "g", Deadline: testNow.Format(time.RFC3339)},
		"group goal without group": {GameName: "g", GoalName: "g", Deadline: tomorrow(), IsGroupGoal: true},
	}
	for name, request := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.CreateGoal(context.Background(), request, user.ID)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	goals, err := db.GetGoalsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestCreateGoalUnknownOwner(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.CreateGoal(context.Background(), &types.CreateGoalRequest{
		GameName: "g", GoalName: "g", Deadline: tomorrow(),
	}, uuid.NewString())
	assert.ErrorIs(t, err, database.ErrUserNotExist)

	_, err = c.CreateGoal(context.Background(), &types.CreateGoalRequest{
		GameName: "g", GoalName: "g", Deadline: testNow.Add(-time.Hour).Format(time.RFC3339),
	}, uuid.NewString())
	assert.ErrorIs(t, err, database.ErrUserNotExist, "owner is resolved before the body is validated")
}

func TestCreateGroupGoal(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	owner := addUser(t, db, "owner@example.com")
	outsider := addUser(t, db, "outsider@example.com")
	group, err := c.CreateGroup(ctx, &types.CreateGroupRequest{Name: "raiders"}, owner.ID)
	require.NoError(t, err)

	request := &types.CreateGoalRequest{
		GameName: "Destiny 2", GoalName: "Flawless", Deadline: tomorrow(),
		IsGroupGoal: true, GroupID: group.ID,
	}
	goal, err := c.CreateGoal(ctx, request, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, goal.GroupID)
	assert.Equal(t, group.ID, *goal.GroupID)

	_, err = c.CreateGoal(ctx, request, outsider.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	goals, err := db.GetGoalsByUser(ctx, outsider.ID)
	require.NoError(t, err)
	assert.Empty(t, goals)

	request.GroupID = uuid.NewString()
	_, err = c.CreateGoal(ctx, request, owner.ID)
	assert.ErrorIs(t, err, database.ErrGroupNotExist)
}

func TestPersonalGoalIgnoresGroupID(t *testing.T) {
	c, db := newTestController(t)
	user := addUser(t, db, "u@example.com")
	goal, err := c.CreateGoal(context.Background(), &types.CreateGoalRequest{
		GameName: "g", GoalName: "g", Deadline: tomorrow(), GroupID: uuid.NewString(),
	}, user.ID)
	require.NoError(t, err)
	assert.Nil(t, goal.GroupID)
}

func TestListGoals(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	user := addUser(t, db, "u@example.com")
	first := createPersonalGoal(t, c, user.ID)
	second := createPersonalGoal(t, c, user.ID)
	_, err := c.CompleteGoal(ctx, first.ID, user.ID)
	require.NoError(t, err)

	list, err := c.ListGoals(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalGoals)
	assert.Equal(t, 1, list.ActiveCount)
	assert.Equal(t, 1, list.CompletedCount)
	assert.Equal(t, second.ID, list.All[0].ID)
	assert.Equal(t, second.ID, list.Active[0].ID)
	assert.Equal(t, first.ID, list.Completed[0].ID)
}

func TestListGoalsEmpty(t *testing.T) {
	c, db := newTestController(t)
	user := addUser(t, db, "u@example.com")
	list, err := c.ListGoals(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, list.All)
	assert.NotNil(t, list.Active)
	assert.NotNil(t, list.Completed)
	assert.Zero(t, list.TotalGoals)
}

func TestCompleteGoalTwiceCreditsOnce(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	user := addUser(t, db, "u@example.com")
	goal := createPersonalGoal(t, c, user.ID)

	receipt, err := c.CompleteGoal(ctx, goal.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, receipt.TokensAwarded)
	assert.Equal(t, 10, receipt.Balance)
	assert.Equal(t, types.GoalStatusCompleted, receipt.Goal.Status)
	require.NotNil(t, receipt.Goal.CompletedDate)
	assert.Equal(t, testNow, *receipt.Goal.CompletedDate)

	_, err = c.CompleteGoal(ctx, goal.ID, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 10, balanceOf(t, db, user.ID))
}

func TestCompleteGoalPreconditions(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	owner := addUser(t, db, "owner@example.com")
	other := addUser(t, db, "other@example.com")
	goal := createPersonalGoal(t, c, owner.ID)

	_, err := c.CompleteGoal(ctx, uuid.NewString(), owner.ID)
	assert.ErrorIs(t, err, database.ErrGoalNotExist)

	_, err = c.CompleteGoal(ctx, "not-a-uuid", owner.ID)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = c.CompleteGoal(ctx, goal.ID, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := db.GetGoalByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GoalStatusActive, stored.Status)
	assert.Equal(t, 0, balanceOf(t, db, owner.ID))
	assert.Equal(t, 0, balanceOf(t, db, other.ID))
}

func TestCompleteGoalFailureLeavesNoPartialState(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	user := addUser(t, db, "u@example.com")
	goal := createPersonalGoal(t, c, user.ID)

	db.FailNext("CreditTokens", errors.New("disk full"))
	_, err := c.CompleteGoal(ctx, goal.ID, user.ID)
	require.Error(t, err)

	stored, err := db.GetGoalByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GoalStatusActive, stored.Status)
	assert.Nil(t, stored.CompletedDate)
	assert.Equal(t, 0, balanceOf(t, db, user.ID))
}

func TestCompleteGoalRetriesTransientFailure(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	user := addUser(t, db, "u@example.com")
	goal := createPersonalGoal(t, c, user.ID)

	db.FailNext("CreditTokens", database.Transient(errors.New("serialization failure")))
	db.FailNext("Commit", database.Transient(errors.New("connection reset")))
	receipt, err := c.CompleteGoal(ctx, goal.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, receipt.Balance)
	assert.Equal(t, 10, balanceOf(t, db, user.ID))
}

func TestCompleteGoalGivesUpAfterRepeatedTransientFailures(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	user := addUser(t, db, "u@example.com")
	goal := createPersonalGoal(t, c, user.ID)

	for i := 0; i < maxTxAttempts; i++ {
		db.FailNext("Commit", database.Transient(errors.New("connection reset")))
	}
	_, err := c.CompleteGoal(ctx, goal.ID, user.ID)
	assert.ErrorIs(t, err, database.ErrTransient)
	assert.Equal(t, 0, balanceOf(t, db, user.ID))

	receipt, err := c.CompleteGoal(ctx, goal.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, receipt.Balance)
}

func TestCompleteGoalDoesNotRetryCancelledContext(t *testing.T) {
	c, db := newTestController(t)
	user := addUser(t, db, "u@example.com")
	goal := createPersonalGoal(t, c, user.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.CompleteGoal(ctx, goal.ID, user.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, balanceOf(t, db, user.ID))
}

func TestCompleteGoalConcurrently(t *testing.T) {
	c, db := newTestController(t)
	user := addUser(t, db, "u@example.com")
	goal := createPersonalGoal(t, c, user.ID)

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CompleteGoal(context.Background(), goal.ID, user.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, alreadyCompleted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyCompleted):
			alreadyCompleted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, alreadyCompleted)
	assert.Equal(t, 10, balanceOf(t, db, user.ID))
}

func TestCompletingDifferentGoalsAccumulates(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()
	user := addUser(t, db, "u@example.com")
	for i := 0; i < 3; i++ {
		goal := createPersonalGoal(t, c, user.ID)
		_, err := c.CompleteGoal(ctx, goal.ID, user.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 30, balanceOf(t, db, user.ID))
}
