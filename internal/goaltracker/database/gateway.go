package database

import (
	"context"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
)

// GoalTx is the view of the store inside a goal transaction. Writes become
// visible only when the enclosing InGoalTx callback returns nil.
type GoalTx interface {
	GetGoalForUpdate(ctx context.Context, goalID string) (*types.Goal, error)
	MarkGoalCompleted(ctx context.Context, goalID string, at time.Time) error
	CreditTokens(ctx context.Context, userID string, amount int) (int, error)
}

// GroupTx is the view of the store inside a group transaction. The group read
// by GetGroupForUpdate stays locked until the transaction ends.
type GroupTx interface {
	GetGroupForUpdate(ctx context.Context, groupID string) (*types.Group, error)
	AddMember(ctx context.Context, groupID string, member types.Member) error
	RemoveMember(ctx context.Context, groupID, userID string) error
}

type Gateway interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUserByID(ctx context.Context, userID string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	CreateGoal(ctx context.Context, goal *types.Goal) error
	GetGoalByID(ctx context.Context, goalID string) (*types.Goal, error)
	GetGoalsByUser(ctx context.Context, userID string) ([]*types.Goal, error)
	InGoalTx(ctx context.Context, fn func(tx GoalTx) error) error

	CreateGroup(ctx context.Context, group *types.Group) error
	GetGroupByID(ctx context.Context, groupID string) (*types.Group, error)
	GetGroupsByMember(ctx context.Context, userID string) ([]*types.Group, error)
	InGroupTx(ctx context.Context, fn func(tx GroupTx) error) error

	CreateItem(ctx context.Context, item *types.MarketplaceItem) error
	GetItemByID(ctx context.Context, itemID string) (*types.MarketplaceItem, error)
	ListAvailableItems(ctx context.Context, category types.ItemCategory) ([]*types.MarketplaceItem, error)
	UpdateItem(ctx context.Context, item *types.MarketplaceItem) error
}

var (
	_ Gateway = (*DB)(nil)
	_ Gateway = (*MemoryDB)(nil)
)
