package controller

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/metrics"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

const (
	minGroupMembers      = 2
	maxGroupMembers      = 10
	minGroupNameLength   = 3
	maxGroupNameLength   = 30
	defaultGroupCapacity = maxGroupMembers
)

// RoleOf reports the role userID holds in group, or false if it is not a member.
func RoleOf(group *types.Group, userID string) (types.Role, bool) {
	for _, m := range group.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

func IsMember(group *types.Group, userID string) bool {
	_, ok := RoleOf(group, userID)
	return ok
}

func AssertAdmin(group *types.Group, userID string) error {
	role, ok := RoleOf(group, userID)
	if !ok || role != types.RoleAdmin {
		return forbidden("only group admins can manage members")
	}
	return nil
}

func (c *Controller) CreateGroup(ctx context.Context, request *types.CreateGroupRequest, creatorID string) (*types.Group, error) {
	name := strings.TrimSpace(request.Name)
	if name == "" {
		return nil, invalid("group name is required")
	}
	if n := utf8.RuneCountInString(name); n < minGroupNameLength || n > maxGroupNameLength {
		return nil, invalid("group name must be between %d and %d characters long", minGroupNameLength, maxGroupNameLength)
	}
	maxMembers := request.MaxMembers
	if maxMembers == 0 {
		maxMembers = defaultGroupCapacity
	}
	if maxMembers < minGroupMembers || maxMembers > maxGroupMembers {
		return nil, invalid("group size must be between %d and %d members", minGroupMembers, maxGroupMembers)
	}

	creator, err := c.userDatabase.GetUserByID(ctx, creatorID)
	if err != nil {
		return nil, errors.Wrap(err, "userDatabase.GetUserByID failed")
	}

	now := c.now().UTC()
	members := []types.Member{{UserID: creator.ID, Email: creator.Email, Role: types.RoleAdmin, JoinedAt: now}}
	seen := map[string]bool{creatorID: true}
	for _, raw := range request.Members {
		userID, err := parseID(raw, "member")
		if err != nil {
			return nil, err
		}
		if seen[userID] {
			continue
		}
		seen[userID] = true
		user, err := c.userDatabase.GetUserByID(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(err, "userDatabase.GetUserByID failed")
		}
		members = append(members, types.Member{UserID: user.ID, Email: user.Email, Role: types.RoleMember, JoinedAt: now})
	}
	if len(members) > maxMembers {
		return nil, newError(ErrCapacityExceeded, "group cannot hold more than %d members", maxMembers)
	}

	group := &types.Group{
		ID:           uuid.NewString(),
		Name:         name,
		CreatorID:    creator.ID,
		CreatorEmail: creator.Email,
		Members:      members,
		MaxMembers:   maxMembers,
		CreatedAt:    now,
	}
	if err := c.groupDatabase.CreateGroup(ctx, group); err != nil {
		return nil, errors.Wrap(err, "groupDatabase.CreateGroup failed")
	}
	return group, nil
}

func (c *Controller) GetUserGroups(ctx context.Context, userID string) ([]*types.Group, error) {
	groups, err := c.groupDatabase.GetGroupsByMember(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "groupDatabase.GetGroupsByMember failed")
	}
	return groups, nil
}

// GetGroupDetails returns the group only to its members.
func (c *Controller) GetGroupDetails(ctx context.Context, groupID, userID string) (*types.Group, error) {
	groupID, err := parseID(groupID, "group")
	if err != nil {
		return nil, err
	}
	group, err := c.groupDatabase.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "groupDatabase.GetGroupByID failed")
	}
	if !IsMember(group, userID) {
		return nil, forbidden("you are not a member of this group")
	}
	return group, nil
}

// resolveTarget finds the user a membership request points at, by id first, then by email.
func (c *Controller) resolveTarget(ctx context.Context, request *types.MemberRequest) (*types.User, error) {
	var (
		user *types.User
		err  error
	)
	switch {
	case request.UserID != "":
		userID, perr := parseID(request.UserID, "user")
		if perr != nil {
			return nil, perr
		}
		user, err = c.userDatabase.GetUserByID(ctx, userID)
	case strings.TrimSpace(request.Email) != "":
		user, err = c.userDatabase.GetUserByEmail(ctx, normalizeEmail(request.Email))
	default:
		return nil, invalid("user id or email is required")
	}
	if err != nil {
		return nil, errors.Wrap(err, "userDatabase lookup failed")
	}
	return user, nil
}

// authorizeTarget resolves the target user only after the requester is known
// to administer the group. Callers re-check the role under the group lock.
func (c *Controller) authorizeTarget(ctx context.Context, request *types.MemberRequest, requesterID string) (string, *types.User, error) {
	groupID, err := parseID(request.GroupID, "group")
	if err != nil {
		return "", nil, err
	}
	group, err := c.groupDatabase.GetGroupByID(ctx, groupID)
	if err != nil {
		return "", nil, errors.Wrap(err, "groupDatabase.GetGroupByID failed")
	}
	if err := AssertAdmin(group, requesterID); err != nil {
		return "", nil, err
	}
	target, err := c.resolveTarget(ctx, request)
	if err != nil {
		return "", nil, err
	}
	return group.ID, target, nil
}

// AddMember appends the target user as a member. The requester's role and the
// group capacity are checked against the locked, freshly read group.
func (c *Controller) AddMember(ctx context.Context, request *types.MemberRequest, requesterID string) (*types.Group, error) {
	groupID, target, err := c.authorizeTarget(ctx, request, requesterID)
	if err != nil {
		return nil, err
	}

	var updated *types.Group
	err = c.withRetry(ctx, func() error {
		return c.groupDatabase.InGroupTx(ctx, func(tx database.GroupTx) error {
			group, err := tx.GetGroupForUpdate(ctx, groupID)
			if err != nil {
				return errors.Wrap(err, "tx.GetGroupForUpdate failed")
			}
			if err := AssertAdmin(group, requesterID); err != nil {
				return err
			}
			if IsMember(group, target.ID) {
				return ErrAlreadyMember
			}
			if len(group.Members) >= group.MaxMembers {
				return newError(ErrCapacityExceeded, "group has reached maximum size of %d members", group.MaxMembers)
			}
			member := types.Member{UserID: target.ID, Email: target.Email, Role: types.RoleMember, JoinedAt: c.now().UTC()}
			if err := tx.AddMember(ctx, group.ID, member); err != nil {
				if errors.Is(err, database.ErrMemberAlreadyExist) {
					return ErrAlreadyMember
				}
				return errors.Wrap(err, "tx.AddMember failed")
			}
			group.Members = append(group.Members, member)
			updated = group
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordMembershipChange("add")
	return updated, nil
}

// RemoveMember drops a non-creator member. Only admins may do it.
func (c *Controller) RemoveMember(ctx context.Context, request *types.MemberRequest, requesterID string) (*types.Group, error) {
	groupID, target, err := c.authorizeTarget(ctx, request, requesterID)
	if err != nil {
		return nil, err
	}

	var updated *types.Group
	err = c.withRetry(ctx, func() error {
		return c.groupDatabase.InGroupTx(ctx, func(tx database.GroupTx) error {
			group, err := tx.GetGroupForUpdate(ctx, groupID)
			if err != nil {
				return errors.Wrap(err, "tx.GetGroupForUpdate failed")
			}
			if err := AssertAdmin(group, requesterID); err != nil {
				return err
			}
			if target.ID == group.CreatorID {
				return ErrCannotRemoveCreator
			}
			if !IsMember(group, target.ID) {
				return database.ErrMemberNotExist
			}
			if err := tx.RemoveMember(ctx, group.ID, target.ID); err != nil {
				return errors.Wrap(err, "tx.RemoveMember failed")
			}
			members := make([]types.Member, 0, len(group.Members)-1)
			for _, m := range group.Members {
				if m.UserID != target.ID {
					members = append(members, m)
				}
			}
			group.Members = members
			updated = group
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordMembershipChange("remove")
	return updated, nil
}
