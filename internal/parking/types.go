package parking

// Status is the lifecycle state of a parked item
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Type classifies what to do with a parked item. Only search items get
// background processing.
type Type string

const (
	TypeSearch Type = "search"
	TypeMemo   Type = "memo"
	TypeTodo   Type = "todo"
)

// Item is one deferred thought or query. Items are never deleted; the
// background worker mutates them in place as processing advances.
type Item struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Type        Type   `json:"type"`
	Source      string `json:"source"`
	Status      Status `json:"status"`
	SessionID   string `json:"session_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}
