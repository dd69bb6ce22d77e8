package db

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	StatusTodo  = "todo"
	StatusDoing = "doing"
	StatusDone  = "done"
)

const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	LastLogin    *time.Time
	DateJoined   time.Time
}

type Team struct {
	ID        int64
	Name      string
	OwnerID   int64
	IsActive  bool
	CreatedAt time.Time
	MemberIDs []int64 // always contains OwnerID once persisted
}

// HasMember reports whether userID is the owner or in the member set.
func (t *Team) HasMember(userID int64) bool {
	if t.OwnerID == userID {
		return true
	}
	for _, id := range t.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Project struct {
	ID        int64
	Name      string
	TeamID    int64
	CreatedBy int64
	StartDate *string // YYYY-MM-DD
	EndDate   *string
	IsActive  bool
	CreatedAt time.Time
}

type Task struct {
	ID          int64
	Title       string
	Description string
	ProjectID   int64
	CreatedBy   *int64
	AssignedTo  *int64
	Status      string
	Priority    int
	DueDate     *string
	CreatedAt   time.Time
}

type Comment struct {
	ID        int64
	TaskID    int64
	AuthorID  int64
	Content   string
	CreatedAt time.Time
}

// TaskFilter narrows ListTasksForUser. Zero values mean no filter.
type TaskFilter struct {
	Status     string
	AssignedTo int64
	ProjectID  int64
}
