package types

type UserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateGoalRequest struct {
	GameName    string `json:"gameName"`
	GoalName    string `json:"goalName"`
	Deadline    string `json:"deadline"`
	IsGroupGoal bool   `json:"isGroupGoal"`
	GroupID     string `json:"groupId"`
}

type CreateGroupRequest struct {
	Name       string   `json:"name"`
	MaxMembers int      `json:"maxMembers"`
	Members    []string `json:"members"`
}

// MemberRequest identifies the target user either by id or by email.
type MemberRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
}

type CreateItemRequest struct {
	Name        string       `json:"name"`
	Category    ItemCategory `json:"category"`
	TokenCost   int          `json:"tokenCost"`
	Description string       `json:"description"`
}

type UpdateItemRequest struct {
	Name        *string       `json:"name"`
	Category    *ItemCategory `json:"category"`
	TokenCost   *int          `json:"tokenCost"`
	Description *string       `json:"description"`
	IsAvailable *bool         `json:"isAvailable"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
