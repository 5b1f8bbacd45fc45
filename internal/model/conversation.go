package model

import (
	"database/sql/driver"
	"strings"
	"time"
)

type MessageRole string

const (
	RoleAI   MessageRole = "ai"
	RoleUser MessageRole = "user"
)

type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

type Messages []ChatMessage

func (m *Messages) Scan(src interface{}) error  { return scanJSON(src, m) }
func (m Messages) Value() (driver.Value, error) { return valueJSON(nonNil(m)) }

// UserTurns returns the patient's messages in order.
func (m Messages) UserTurns() []string {
	var out []string
	for _, msg := range m {
		if msg.Role == RoleUser {
			out = append(out, msg.Content)
		}
	}
	return out
}

type ConversationStatus string

const (
	ConversationInProgress  ConversationStatus = "in_progress"
	ConversationComplete    ConversationStatus = "complete"
	ConversationSynthesized ConversationStatus = "synthesized"
)

type ChatConversation struct {
	ID         string    `json:"conversation_id" db:"conversation_id"`
	PatientID  string    `json:"patient_id" db:"patient_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	IsComplete bool      `json:"is_complete" db:"is_complete"`
	Messages   Messages  `json:"messages" db:"messages"`
	// BriefingID is set once a briefing has been produced from this conversation.
	BriefingID *string `json:"briefing_id,omitempty" db:"briefing_id"`
}

func (c *ChatConversation) Status() ConversationStatus {
	switch {
	case c.BriefingID != nil:
		return ConversationSynthesized
	case c.IsComplete:
		return ConversationComplete
	default:
		return ConversationInProgress
	}
}

// Transcript joins the patient's messages with blank lines.
func (c *ChatConversation) Transcript() string {
	return strings.Join(c.Messages.UserTurns(), "\n\n")
}

type StartChatRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
}

type StartChatResponse struct {
	ConversationID string      `json:"conversation_id"`
	PatientID      string      `json:"patient_id"`
	InitialMessage ChatMessage `json:"initial_message"`
	IsComplete     bool        `json:"is_complete"`
}

type ContinueChatRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	UserMessage    string `json:"user_message" binding:"required,notblank"`
}

type ContinueChatResponse struct {
	ConversationID string      `json:"conversation_id"`
	AIMessage      ChatMessage `json:"ai_message"`
	IsComplete     bool        `json:"is_complete"`
	BriefingID     *string     `json:"briefing_id,omitempty"`
}

type ConversationView struct {
	*ChatConversation
	Status ConversationStatus `json:"status"`
}
