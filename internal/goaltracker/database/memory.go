package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
)

// MemoryDB is a process-local Gateway. Transactions hold the store lock for
// their whole duration and stage writes until the callback returns nil, so a
// failed transaction leaves no trace. Transaction callbacks must only use the
// tx they are given.
type MemoryDB struct {
	mu     sync.Mutex
	seq    int64
	order  map[string]int64
	users  map[string]*types.User
	goals  map[string]*types.Goal
	groups map[string]*types.Group
	items  map[string]*types.MarketplaceItem
	faults map[string][]error
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		order:  make(map[string]int64),
		users:  make(map[string]*types.User),
		goals:  make(map[string]*types.Goal),
		groups: make(map[string]*types.Group),
		items:  make(map[string]*types.MarketplaceItem),
		faults: make(map[string][]error),
	}
}

// FailNext makes the next call of op (a GoalTx/GroupTx method name or
// "Commit") return err. Faults queue up per op.
func (m *MemoryDB) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

// fault must be called with mu held.
func (m *MemoryDB) fault(op string) error {
	queue := m.faults[op]
	if len(queue) == 0 {
		return nil
	}
	m.faults[op] = queue[1:]
	return queue[0]
}

func (m *MemoryDB) Close() error {
	return nil
}

func (m *MemoryDB) remember(id string) {
	m.seq++
	m.order[id] = m.seq
}

// newerFirst orders by creation time descending, insertion order breaking ties.
func (m *MemoryDB) newerFirst(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return m.order[aID] > m.order[bID]
}

func cloneUser(u *types.User) *types.User {
	c := *u
	return &c
}

func cloneGoal(g *types.Goal) *types.Goal {
	c := *g
	if g.GroupID != nil {
		id := *g.GroupID
		c.GroupID = &id
	}
	if g.CompletedDate != nil {
		at := *g.CompletedDate
		c.CompletedDate = &at
	}
	return &c
}

func cloneGroup(g *types.Group) *types.Group {
	c := *g
	c.Members = append(make([]types.Member, 0, len(g.Members)), g.Members...)
	return &c
}

// withEmails returns a copy of g with creator and member emails filled from
// the user table. Must be called with mu held.
func (m *MemoryDB) withEmails(g *types.Group) *types.Group {
	c := cloneGroup(g)
	if u, ok := m.users[c.CreatorID]; ok {
		c.CreatorEmail = u.Email
	}
	for i := range c.Members {
		if u, ok := m.users[c.Members[i].UserID]; ok {
			c.Members[i].Email = u.Email
		}
	}
	return c
}

func cloneItem(i *types.MarketplaceItem) *types.MarketplaceItem {
	c := *i
	return &c
}

func (m *MemoryDB) CreateUser(ctx context.Context, user *types.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrUserAlreadyExist
		}
	}
	m.users[user.ID] = cloneUser(user)
	m.remember(user.ID)
	return nil
}

func (m *MemoryDB) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotExist
	}
	return cloneUser(u), nil
}

func (m *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotExist
}

func (m *MemoryDB) CreateGoal(ctx context.Context, goal *types.Goal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[goal.UserID]; !ok {
		return ErrUserNotExist
	}
	if goal.GroupID != nil {
		if _, ok := m.groups[*goal.GroupID]; !ok {
			return ErrGroupNotExist
		}
	}
	m.goals[goal.ID] = cloneGoal(goal)
	m.remember(goal.ID)
	return nil
}

func (m *MemoryDB) GetGoalByID(ctx context.Context, goalID string) (*types.Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[goalID]
	if !ok {
		return nil, ErrGoalNotExist
	}
	return cloneGoal(g), nil
}

func (m *MemoryDB) GetGoalsByUser(ctx context.Context, userID string) ([]*types.Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	goals := make([]*types.Goal, 0)
	for _, g := range m.goals {
		if g.UserID == userID {
			goals = append(goals, cloneGoal(g))
		}
	}
	sort.Slice(goals, func(i, j int) bool {
		return m.newerFirst(goals[i].ID, goals[i].CreatedAt, goals[j].ID, goals[j].CreatedAt)
	})
	return goals, nil
}

func (m *MemoryDB) InGoalTx(ctx context.Context, fn func(tx GoalTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memGoalTx{db: m, goals: make(map[string]*types.Goal), users: make(map[string]*types.User)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := m.fault("Commit"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, g := range tx.goals {
		m.goals[id] = g
	}
	for id, u := range tx.users {
		m.users[id] = u
	}
	return nil
}

type memGoalTx struct {
	db    *MemoryDB
	goals map[string]*types.Goal
	users map[string]*types.User
}

func (t *memGoalTx) goal(goalID string) (*types.Goal, bool) {
	if g, ok := t.goals[goalID]; ok {
		return g, true
	}
	g, ok := t.db.goals[goalID]
	if !ok {
		return nil, false
	}
	return cloneGoal(g), true
}

func (t *memGoalTx) GetGoalForUpdate(ctx context.Context, goalID string) (*types.Goal, error) {
	if err := t.db.fault("GetGoalForUpdate"); err != nil {
		return nil, err
	}
	g, ok := t.goal(goalID)
	if !ok {
		return nil, ErrGoalNotExist
	}
	return cloneGoal(g), nil
}

func (t *memGoalTx) MarkGoalCompleted(ctx context.Context, goalID string, at time.Time) error {
	if err := t.db.fault("MarkGoalCompleted"); err != nil {
		return err
	}
	g, ok := t.goal(goalID)
	if !ok {
		return ErrGoalNotExist
	}
	if g.Status != types.GoalStatusActive {
		return ErrGoalNotActive
	}
	g.Status = types.GoalStatusCompleted
	g.CompletedDate = &at
	t.goals[goalID] = g
	return nil
}

func (t *memGoalTx) CreditTokens(ctx context.Context, userID string, amount int) (int, error) {
	if err := t.db.fault("CreditTokens"); err != nil {
		return 0, err
	}
	u, ok := t.users[userID]
	if !ok {
		stored, exists := t.db.users[userID]
		if !exists {
			return 0, ErrUserNotExist
		}
		u = cloneUser(stored)
	}
	u.Tokens += amount
	t.users[userID] = u
	return u.Tokens, nil
}

func (m *MemoryDB) CreateGroup(ctx context.Context, group *types.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[group.CreatorID]; !ok {
		return ErrUserNotExist
	}
	seen := make(map[string]bool, len(group.Members))
	for _, member := range group.Members {
		if _, ok := m.users[member.UserID]; !ok {
			return ErrUserNotExist
		}
		if seen[member.UserID] {
			return ErrMemberAlreadyExist
		}
		seen[member.UserID] = true
	}
	m.groups[group.ID] = cloneGroup(group)
	m.remember(group.ID)
	return nil
}

func (m *MemoryDB) GetGroupByID(ctx context.Context, groupID string) (*types.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil, ErrGroupNotExist
	}
	return m.withEmails(g), nil
}

func (m *MemoryDB) GetGroupsByMember(ctx context.Context, userID string) ([]*types.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := make([]*types.Group, 0)
	for _, g := range m.groups {
		for _, member := range g.Members {
			if member.UserID == userID {
				groups = append(groups, m.withEmails(g))
				break
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return m.newerFirst(groups[i].ID, groups[i].CreatedAt, groups[j].ID, groups[j].CreatedAt)
	})
	return groups, nil
}

func (m *MemoryDB) InGroupTx(ctx context.Context, fn func(tx GroupTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memGroupTx{db: m, groups: make(map[string]*types.Group)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := m.fault("Commit"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, g := range tx.groups {
		m.groups[id] = g
	}
	return nil
}

type memGroupTx struct {
	db     *MemoryDB
	groups map[string]*types.Group
}

func (t *memGroupTx) group(groupID string) (*types.Group, bool) {
	if g, ok := t.groups[groupID]; ok {
		return g, true
	}
	g, ok := t.db.groups[groupID]
	if !ok {
		return nil, false
	}
	return cloneGroup(g), true
}

func (t *memGroupTx) GetGroupForUpdate(ctx context.Context, groupID string) (*types.Group, error) {
	if err := t.db.fault("GetGroupForUpdate"); err != nil {
		return nil, err
	}
	g, ok := t.group(groupID)
	if !ok {
		return nil, ErrGroupNotExist
	}
	return t.db.withEmails(g), nil
}

func (t *memGroupTx) AddMember(ctx context.Context, groupID string, member types.Member) error {
	if err := t.db.fault("AddMember"); err != nil {
		return err
	}
	g, ok := t.group(groupID)
	if !ok {
		return ErrGroupNotExist
	}
	if _, ok := t.db.users[member.UserID]; !ok {
		return ErrUserNotExist
	}
	for _, existing := range g.Members {
		if existing.UserID == member.UserID {
			return ErrMemberAlreadyExist
		}
	}
	g.Members = append(g.Members, member)
	t.groups[groupID] = g
	return nil
}

func (t *memGroupTx) RemoveMember(ctx context.Context, groupID, userID string) error {
	if err := t.db.fault("RemoveMember"); err != nil {
		return err
	}
	g, ok := t.group(groupID)
	if !ok {
		return ErrGroupNotExist
	}
	for i, existing := range g.Members {
		if existing.UserID == userID {
			g.Members = append(g.Members[:i:i], g.Members[i+1:]...)
			t.groups[groupID] = g
			return nil
		}
	}
	return ErrMemberNotExist
}

func (m *MemoryDB) CreateItem(ctx context.Context, item *types.MarketplaceItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[item.CreatedBy]; !ok {
		return ErrUserNotExist
	}
	m.items[item.ID] = cloneItem(item)
	m.remember(item.ID)
	return nil
}

func (m *MemoryDB) GetItemByID(ctx context.Context, itemID string) (*types.MarketplaceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotExist
	}
	return cloneItem(i), nil
}

func (m *MemoryDB) ListAvailableItems(ctx context.Context, category types.ItemCategory) ([]*types.MarketplaceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*types.MarketplaceItem, 0)
	for _, i := range m.items {
		if !i.IsAvailable || (category != "" && i.Category != category) {
			continue
		}
		items = append(items, cloneItem(i))
	}
	sort.Slice(items, func(a, b int) bool {
		return m.newerFirst(items[a].ID, items[a].CreatedAt, items[b].ID, items[b].CreatedAt)
	})
	return items, nil
}

func (m *MemoryDB) UpdateItem(ctx context.Context, item *types.MarketplaceItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return ErrItemNotExist
	}
	m.items[item.ID] = cloneItem(item)
	return nil
}
