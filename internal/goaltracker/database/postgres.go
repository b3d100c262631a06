package database

import (
	"context"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/config"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DB struct {
	Conn   *pgxpool.Pool
	logger *zap.Logger
}

func NewDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Storage.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.ParseConfig failed")
	}
	if cfg.Storage.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Storage.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.NewWithConfig failed")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pool.Ping failed")
	}
	return &DB{Conn: pool, logger: logger.Named("database")}, nil
}

func (d *DB) Close() error {
	d.Conn.Close()
	return nil
}

// inTx runs fn in a transaction and commits only if fn succeeds.
func (d *DB) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := d.Conn.Begin(ctx)
	if err != nil {
		return classify(errors.Wrap(err, "conn.Begin failed"))
	}

	rollback := func() {
		// the request context may already be done; the rollback must still reach the server
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			d.logger.Error("tx.Rollback failed", zap.Error(err))
		}
	}

	if err := fn(tx); err != nil {
		rollback()
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		rollback()
		return classify(errors.Wrap(err, "tx.Commit failed"))
	}
	return nil
}

// users

const userColumns = "id, email, password, tokens, current_streak, longest_streak, achievement_count, created_at"

func scanUser(row pgx.Row) (*types.User, error) {
	user := &types.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.Tokens, &user.CurrentStreak,
		&user.LongestStreak, &user.AchievementCount, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed")
	}
	return user, nil
}

func (d *DB) CreateUser(ctx context.Context, user *types.User) error {
	row := d.Conn.QueryRow(ctx, "insert into users (id, email, password, tokens, created_at) values ($1, $2, $3, $4, $5) on conflict (email) do nothing returning id",
		user.ID, user.Email, user.Password, user.Tokens, user.CreatedAt)
	var id string
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserAlreadyExist
	}
	if err != nil {
		return errors.Wrap(err, "row.Scan failed")
	}
	return nil
}

func (d *DB) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	return scanUser(d.Conn.QueryRow(ctx, "select "+userColumns+" from users where id = $1", userID))
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return scanUser(d.Conn.QueryRow(ctx, "select "+userColumns+" from users where email = $1", email))
}

// goals

const goalColumns = "id, user_id, game_name, goal_name, deadline, status, is_group_goal, group_id, completed_date, created_at"

func scanGoal(row pgx.Row) (*types.Goal, error) {
	goal := &types.Goal{}
	var status string
	err := row.Scan(&goal.ID, &goal.UserID, &goal.GameName, &goal.GoalName, &goal.Deadline, &status,
		&goal.IsGroupGoal, &goal.GroupID, &goal.CompletedDate, &goal.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGoalNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed")
	}
	goal.Status = types.GoalStatus(status)
	return goal, nil
}

func (d *DB) CreateGoal(ctx context.Context, goal *types.Goal) error {
	_, err := d.Conn.Exec(ctx, "insert into goals ("+goalColumns+") values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		goal.ID, goal.UserID, goal.GameName, goal.GoalName, goal.Deadline, string(goal.Status),
		goal.IsGroupGoal, goal.GroupID, goal.CompletedDate, goal.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateForeignKeyViolation {
			if pgErr.ConstraintName == "goals_group_id_fkey" {
				return ErrGroupNotExist
			}
			return ErrUserNotExist
		}
		return errors.Wrap(err, "conn.Exec failed")
	}
	return nil
}

func (d *DB) GetGoalByID(ctx context.Context, goalID string) (*types.Goal, error) {
	return scanGoal(d.Conn.QueryRow(ctx, "select "+goalColumns+" from goals where id = $1", goalID))
}

func (d *DB) GetGoalsByUser(ctx context.Context, userID string) ([]*types.Goal, error) {
	rows, err := d.Conn.Query(ctx, "select "+goalColumns+" from goals where user_id = $1 order by created_at desc", userID)
	if err != nil {
		return nil, errors.Wrap(err, "conn.Query failed")
	}
	defer rows.Close()
	goals := make([]*types.Goal, 0)
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return goals, nil
}

func (d *DB) InGoalTx(ctx context.Context, fn func(tx GoalTx) error) error {
	return d.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgGoalTx{tx: tx})
	})
}

type pgGoalTx struct {
	tx pgx.Tx
}

func (t *pgGoalTx) GetGoalForUpdate(ctx context.Context, goalID string) (*types.Goal, error) {
	return scanGoal(t.tx.QueryRow(ctx, "select "+goalColumns+" from goals where id = $1 for update", goalID))
}

func (t *pgGoalTx) MarkGoalCompleted(ctx context.Context, goalID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, "update goals set status = 'completed', completed_date = $2 where id = $1 and status = 'active'", goalID, at)
	if err != nil {
		return errors.Wrap(err, "tx.Exec failed")
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotActive
	}
	return nil
}

func (t *pgGoalTx) CreditTokens(ctx context.Context, userID string, amount int) (int, error) {
	var balance int
	err := t.tx.QueryRow(ctx, "update users set tokens = tokens + $2 where id = $1 returning tokens", userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotExist
	}
	if err != nil {
		return 0, errors.Wrap(err, "row.Scan failed")
	}
	return balance, nil
}

// groups

const groupColumns = "id, name, creator_id, max_members, created_at"

// selectGroups reads groups with the creator's email.
const selectGroups = "select g.id, g.name, g.creator_id, g.max_members, g.created_at, u.email from groups g join users u on u.id = g.creator_id"

func scanGroup(row pgx.Row) (*types.Group, error) {
	group := &types.Group{}
	err := row.Scan(&group.ID, &group.Name, &group.CreatorID, &group.MaxMembers, &group.CreatedAt, &group.CreatorEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGroupNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed")
	}
	group.Members = make([]types.Member, 0)
	return group, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadMembers fills Members of every group in the map, in join order.
func loadMembers(ctx context.Context, q querier, groups map[string]*types.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	rows, err := q.Query(ctx, "select m.group_id, m.user_id, u.email, m.role, m.joined_at from group_members m join users u on u.id = m.user_id where m.group_id = any($1::uuid[]) order by m.seq", ids)
	if err != nil {
		return errors.Wrap(err, "Query failed")
	}
	defer rows.Close()
	for rows.Next() {
		var groupID, role string
		var m types.Member
		if err := rows.Scan(&groupID, &m.UserID, &m.Email, &role, &m.JoinedAt); err != nil {
			return errors.Wrap(err, "rows.Scan failed")
		}
		m.Role = types.Role(role)
		if g, ok := groups[groupID]; ok {
			g.Members = append(g.Members, m)
		}
	}
	return errors.Wrap(rows.Err(), "rows.Err")
}

func insertMember(ctx context.Context, tx pgx.Tx, groupID string, m types.Member) error {
	tag, err := tx.Exec(ctx, "insert into group_members (group_id, user_id, role, joined_at) values ($1, $2, $3, $4) on conflict (group_id, user_id) do nothing",
		groupID, m.UserID, string(m.Role), m.JoinedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateForeignKeyViolation {
			return ErrUserNotExist
		}
		return errors.Wrap(err, "tx.Exec failed")
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberAlreadyExist
	}
	return nil
}

func (d *DB) CreateGroup(ctx context.Context, group *types.Group) error {
	return d.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "insert into groups ("+groupColumns+") values ($1, $2, $3, $4, $5)",
			group.ID, group.Name, group.CreatorID, group.MaxMembers, group.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == sqlStateForeignKeyViolation {
				return ErrUserNotExist
			}
			return errors.Wrap(err, "tx.Exec failed")
		}
		for _, m := range group.Members {
			if err := insertMember(ctx, tx, group.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) GetGroupByID(ctx context.Context, groupID string) (*types.Group, error) {
	group, err := scanGroup(d.Conn.QueryRow(ctx, selectGroups+" where g.id = $1", groupID))
	if err != nil {
		return nil, err
	}
	if err := loadMembers(ctx, d.Conn, map[string]*types.Group{group.ID: group}); err != nil {
		return nil, err
	}
	return group, nil
}

func (d *DB) GetGroupsByMember(ctx context.Context, userID string) ([]*types.Group, error) {
	rows, err := d.Conn.Query(ctx, selectGroups+" join group_members m on m.group_id = g.id where m.user_id = $1 order by g.created_at desc", userID)
	if err != nil {
		return nil, errors.Wrap(err, "conn.Query failed")
	}
	groups := make([]*types.Group, 0)
	byID := make(map[string]*types.Group)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, group)
		byID[group.ID] = group
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	if err := loadMembers(ctx, d.Conn, byID); err != nil {
		return nil, err
	}
	return groups, nil
}

func (d *DB) InGroupTx(ctx context.Context, fn func(tx GroupTx) error) error {
	return d.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgGroupTx{tx: tx})
	})
}

type pgGroupTx struct {
	tx pgx.Tx
}

func (t *pgGroupTx) GetGroupForUpdate(ctx context.Context, groupID string) (*types.Group, error) {
	group, err := scanGroup(t.tx.QueryRow(ctx, selectGroups+" where g.id = $1 for update of g", groupID))
	if err != nil {
		return nil, err
	}
	if err := loadMembers(ctx, t.tx, map[string]*types.Group{group.ID: group}); err != nil {
		return nil, err
	}
	return group, nil
}

func (t *pgGroupTx) AddMember(ctx context.Context, groupID string, member types.Member) error {
	return insertMember(ctx, t.tx, groupID, member)
}

func (t *pgGroupTx) RemoveMember(ctx context.Context, groupID, userID string) error {
	tag, err := t.tx.Exec(ctx, "delete from group_members where group_id = $1 and user_id = $2", groupID, userID)
	if err != nil {
		return errors.Wrap(err, "tx.Exec failed")
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotExist
	}
	return nil
}

// marketplace

const itemColumns = "id, name, category, token_cost, description, created_by, is_available, created_at"

func scanItem(row pgx.Row) (*types.MarketplaceItem, error) {
	item := &types.MarketplaceItem{}
	var category string
	err := row.Scan(&item.ID, &item.Name, &category, &item.TokenCost, &item.Description, &item.CreatedBy,
		&item.IsAvailable, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotExist
	}
	if err != nil {
		return nil, errors.Wrap(err, "row.Scan failed")
	}
	item.Category = types.ItemCategory(category)
	return item, nil
}

func (d *DB) CreateItem(ctx context.Context, item *types.MarketplaceItem) error {
	_, err := d.Conn.Exec(ctx, "insert into marketplace_items ("+itemColumns+") values ($1, $2, $3, $4, $5, $6, $7, $8)",
		item.ID, item.Name, string(item.Category), item.TokenCost, item.Description, item.CreatedBy, item.IsAvailable, item.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "conn.Exec failed")
	}
	return nil
}

func (d *DB) GetItemByID(ctx context.Context, itemID string) (*types.MarketplaceItem, error) {
	return scanItem(d.Conn.QueryRow(ctx, "select "+itemColumns+" from marketplace_items where id = $1", itemID))
}

func (d *DB) ListAvailableItems(ctx context.Context, category types.ItemCategory) ([]*types.MarketplaceItem, error) {
	rows, err := d.Conn.Query(ctx, "select "+itemColumns+" from marketplace_items where is_available and ($1 = '' or category = $1) order by created_at desc", string(category))
	if err != nil {
		return nil, errors.Wrap(err, "conn.Query failed")
	}
	defer rows.Close()
	items := make([]*types.MarketplaceItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return items, nil
}

func (d *DB) UpdateItem(ctx context.Context, item *types.MarketplaceItem) error {
	tag, err := d.Conn.Exec(ctx, "update marketplace_items set name = $2, category = $3, token_cost = $4, description = $5, is_available = $6 where id = $1",
		item.ID, item.Name, string(item.Category), item.TokenCost, item.Description, item.IsAvailable)
	if err != nil {
		return errors.Wrap(err, "conn.Exec failed")
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotExist
	}
	return nil
}
