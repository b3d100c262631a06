package controller

import (
	"context"
	"strings"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/metrics"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

func (c *Controller) CreateGoal(ctx context.Context, request *types.CreateGoalRequest, ownerID string) (*types.Goal, error) {
	if _, err := c.userDatabase.GetUserByID(ctx, ownerID); err != nil {
		return nil, errors.Wrap(err, "userDatabase.GetUserByID failed")
	}

	gameName := strings.TrimSpace(request.GameName)
	goalName := strings.TrimSpace(request.GoalName)
	if gameName == "" {
		return nil, invalid("game name is required")
	}
	if goalName == "" {
		return nil, invalid("goal name is required")
	}
	if request.Deadline == "" {
		return nil, invalid("deadline is required")
	}
	deadline, err := time.Parse(time.RFC3339, request.Deadline)
	if err != nil {
		return nil, invalid("deadline must be an RFC3339 timestamp")
	}
	now := c.now().UTC()
	if !deadline.After(now) {
		return nil, invalid("deadline must be a future date")
	}

	var groupID *string
	if request.IsGroupGoal {
		if request.GroupID == "" {
			return nil, invalid("group id is required for a group goal")
		}
		id, err := parseID(request.GroupID, "group")
		if err != nil {
			return nil, err
		}
		group, err := c.groupDatabase.GetGroupByID(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "groupDatabase.GetGroupByID failed")
		}
		if !IsMember(group, ownerID) {
			return nil, forbidden("you are not a member of this group")
		}
		groupID = &group.ID
	}

	goal := &types.Goal{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		GameName:    gameName,
		GoalName:    goalName,
		Deadline:    deadline.UTC(),
		Status:      types.GoalStatusActive,
		IsGroupGoal: request.IsGroupGoal,
		GroupID:     groupID,
		CreatedAt:   now,
	}
	if err := c.goalDatabase.CreateGoal(ctx, goal); err != nil {
		return nil, errors.Wrap(err, "goalDatabase.CreateGoal failed")
	}
	return goal, nil
}

// ListGoals returns the owner's goals, newest first, split by status.
func (c *Controller) ListGoals(ctx context.Context, ownerID string) (*types.GoalList, error) {
	goals, err := c.goalDatabase.GetGoalsByUser(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "goalDatabase.GetGoalsByUser failed")
	}
	list := &types.GoalList{
		All:       goals,
		Active:    make([]*types.Goal, 0),
		Completed: make([]*types.Goal, 0),
	}
	for _, g := range goals {
		switch g.Status {
		case types.GoalStatusActive:
			list.Active = append(list.Active, g)
		case types.GoalStatusCompleted:
			list.Completed = append(list.Completed, g)
		}
	}
	list.TotalGoals = len(list.All)
	list.ActiveCount = len(list.Active)
	list.CompletedCount = len(list.Completed)
	return list, nil
}

// CompleteGoal marks the caller's goal completed and credits the reward in one
// transaction. A goal is rewarded at most once: the status check runs on the
// locked row, so a concurrent or repeated call gets ErrAlreadyCompleted.
func (c *Controller) CompleteGoal(ctx context.Context, goalID, callerID string) (*types.CompletionReceipt, error) {
	goalID, err := parseID(goalID, "goal")
	if err != nil {
		return nil, err
	}

	var receipt *types.CompletionReceipt
	err = c.withRetry(ctx, func() error {
		return c.goalDatabase.InGoalTx(ctx, func(tx database.GoalTx) error {
			goal, err := tx.GetGoalForUpdate(ctx, goalID)
			if err != nil {
				return errors.Wrap(err, "tx.GetGoalForUpdate failed")
			}
			if goal.UserID != callerID {
				return forbidden("not authorized to complete this goal")
			}
			if goal.Status == types.GoalStatusCompleted {
				return ErrAlreadyCompleted
			}

			completedAt := c.now().UTC()
			if err := tx.MarkGoalCompleted(ctx, goal.ID, completedAt); err != nil {
				if errors.Is(err, database.ErrGoalNotActive) {
					return ErrAlreadyCompleted
				}
				return errors.Wrap(err, "tx.MarkGoalCompleted failed")
			}
			balance, err := tx.CreditTokens(ctx, goal.UserID, goalCompletionReward)
			if err != nil {
				return errors.Wrap(err, "tx.CreditTokens failed")
			}

			goal.Status = types.GoalStatusCompleted
			goal.CompletedDate = &completedAt
			receipt = &types.CompletionReceipt{
				Goal:          goal,
				TokensAwarded: goalCompletionReward,
				Balance:       balance,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordGoalCompleted(goalCompletionReward)
	return receipt, nil
}
