package types

import "time"

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Password         string    `json:"-"`
	Tokens           int       `json:"tokens"`
	CurrentStreak    int       `json:"currentStreak"`
	LongestStreak    int       `json:"longestStreak"`
	AchievementCount int       `json:"achievementCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
)

// Goal is owned by a single user. CompletedDate is set iff Status is completed.
type Goal struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user"`
	GameName      string     `json:"gameName"`
	GoalName      string     `json:"goalName"`
	Deadline      time.Time  `json:"deadline"`
	Status        GoalStatus `json:"status"`
	IsGroupGoal   bool       `json:"isGroupGoal"`
	GroupID       *string    `json:"groupId"`
	CompletedDate *time.Time `json:"completedDate"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member is a group membership. Email is filled from the user on read.
type Member struct {
	UserID   string    `json:"user"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Group struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatorID    string    `json:"creator"`
	CreatorEmail string    `json:"creatorEmail"`
	Members      []Member  `json:"members"`
	MaxMembers   int       `json:"maxMembers"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ItemCategory string

const (
	CategoryMovies    ItemCategory = "movies"
	CategoryGroceries ItemCategory = "groceries"
	CategoryFood      ItemCategory = "food"
	CategoryOther     ItemCategory = "other"
)

func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryMovies, CategoryGroceries, CategoryFood, CategoryOther:
		return true
	}
	return false
}

type MarketplaceItem struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Category    ItemCategory `json:"category"`
	TokenCost   int          `json:"tokenCost"`
	Description string       `json:"description,omitempty"`
	CreatedBy   string       `json:"createdBy"`
	IsAvailable bool         `json:"isAvailable"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// CompletionReceipt is returned by a successful goal completion.
type CompletionReceipt struct {
	Goal          *Goal `json:"goal"`
	TokensAwarded int   `json:"tokensAwarded"`
	Balance       int   `json:"balance"`
}

type GoalList struct {
	All            []*Goal `json:"all"`
	Active         []*Goal `json:"active"`
	Completed      []*Goal `json:"completed"`
	TotalGoals     int     `json:"totalGoals"`
	ActiveCount    int     `json:"activeCount"`
	CompletedCount int     `json:"completedCount"`
}
