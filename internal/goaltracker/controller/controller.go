package controller

import (
	"context"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/config"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// goalCompletionReward is credited once per completed goal.
const goalCompletionReward = 10

// maxTxAttempts bounds retries of a transaction that failed with database.ErrTransient.
const maxTxAttempts = 3

type userDatabase interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUserByID(ctx context.Context, userID string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
}

type goalDatabase interface {
	CreateGoal(ctx context.Context, goal *types.Goal) error
	GetGoalsByUser(ctx context.Context, userID string) ([]*types.Goal, error)
	InGoalTx(ctx context.Context, fn func(tx database.GoalTx) error) error
}

type groupDatabase interface {
	CreateGroup(ctx context.Context, group *types.Group) error
	GetGroupByID(ctx context.Context, groupID string) (*types.Group, error)
	GetGroupsByMember(ctx context.Context, userID string) ([]*types.Group, error)
	InGroupTx(ctx context.Context, fn func(tx database.GroupTx) error) error
}

type marketplaceDatabase interface {
	CreateItem(ctx context.Context, item *types.MarketplaceItem) error
	GetItemByID(ctx context.Context, itemID string) (*types.MarketplaceItem, error)
	ListAvailableItems(ctx context.Context, category types.ItemCategory) ([]*types.MarketplaceItem, error)
	UpdateItem(ctx context.Context, item *types.MarketplaceItem) error
}

type Controller struct {
	userDatabase        userDatabase
	goalDatabase        goalDatabase
	groupDatabase       groupDatabase
	marketplaceDatabase marketplaceDatabase
	jwtSecret           []byte
	tokenTTL            time.Duration
	databaseClose       func() error
	now                 func() time.Time
}

func NewController(cfg *config.Config, u userDatabase, g goalDatabase, gr groupDatabase, m marketplaceDatabase, dbClose func() error) *Controller {
	return &Controller{
		userDatabase:        u,
		goalDatabase:        g,
		groupDatabase:       gr,
		marketplaceDatabase: m,
		jwtSecret:           []byte(cfg.Auth.JWTSecret),
		tokenTTL:            cfg.Auth.TokenTTL,
		databaseClose:       dbClose,
		now:                 time.Now,
	}
}

func (c *Controller) Close() error {
	return c.databaseClose()
}

// withRetry reruns op while it fails with a transient storage error. op must
// re-check its preconditions on every run. Cancellation is never retried: the
// outcome of the last attempt is unknown to the caller.
func (c *Controller) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, database.ErrTransient) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "transaction interrupted")
		}
	}
	return err
}

func parseID(id, what string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", invalid("invalid %s id format", what)
	}
	return parsed.String(), nil
}
