package models

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now()}
}
