package models

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskLate       TaskStatus = "overdue"
)

// Valid reports whether s is one of the declared task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskDone, TaskCancelled, TaskLate:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityUrgent TaskPriority = "urgent"
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// Assignee is a user referenced by a task.
type Assignee struct {
	ID   ID     `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

type TaskComment struct {
	ID        ID     `json:"id"`
	TaskID    ID     `json:"taskId,omitempty"`
	Author    string `json:"author,omitempty"`
	Content   string `json:"content"`
	CreatedAt Time   `json:"createdAt"`
}

// ManagementTask is a farm operations work item (feeding, cleaning,
// vaccination...) tracked through the push channel.
type ManagementTask struct {
	ID                   ID            `json:"id"`
	Title                string        `json:"title"`
	Description          string        `json:"description,omitempty"`
	Category             string        `json:"category,omitempty"`
	Priority             TaskPriority  `json:"priority,omitempty"`
	Status               TaskStatus    `json:"status"`
	CompletionPercentage float64       `json:"completionPercentage"`
	AssignedTo           []Assignee    `json:"assignedTo,omitempty"`
	Supervisors          []Assignee    `json:"supervisors,omitempty"`
	Comments             []TaskComment `json:"comments"`
	Deadline             *Time         `json:"deadline,omitempty"`
	CreatedAt            *Time         `json:"createdAt,omitempty"`
	UpdatedAt            *Time         `json:"updatedAt,omitempty"`
	CompletedAt          *Time         `json:"completedAt,omitempty"`
}

// TaskCommentEvent is the payload of task_comment_added.
type TaskCommentEvent struct {
	TaskID  ID           `json:"taskId"`
	Comment *TaskComment `json:"comment"`
}

// TaskDeadline is the payload of task_deadline_approaching.
type TaskDeadline struct {
	TaskID   ID     `json:"taskId"`
	Title    string `json:"title"`
	Deadline *Time  `json:"deadline,omitempty"`
}
