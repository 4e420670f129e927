package messages

import (
	"time"

	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
)

// ParticipantChannel is the only participant type threads support.
const ParticipantChannel = "channel"

// Participant is a place a thread is posted to.
type Participant struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	WorkspaceID string `json:"workspace_id"`
}

// Ref returns the channel the participant points at.
func (p Participant) Ref() channels.Ref {
	return channels.Ref{CompanyID: p.CompanyID, WorkspaceID: p.WorkspaceID, ChannelID: p.ID}
}

// Thread groups a first message with its replies.
type Thread struct {
	ID           string        `json:"id"`
	CompanyID    string        `json:"company_id"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants"`
}

// FileMetadata describes an attachment stored elsewhere.
type FileMetadata struct {
	Source     string `json:"source,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Mime       string `json:"mime,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

type MessageFile struct {
	ID       string       `json:"id"`
	Metadata FileMetadata `json:"metadata"`
}

// Message is one post of a thread. The first message has ID == ThreadID.
type Message struct {
	ID          string        `json:"id"`
	ThreadID    string        `json:"thread_id"`
	CompanyID   string        `json:"company_id"`
	WorkspaceID string        `json:"workspace_id"`
	ChannelID   string        `json:"channel_id"`
	UserID      string        `json:"user_id"`
	Text        string        `json:"text"`
	Files       []MessageFile `json:"files"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsThreadHead reports whether m opened its thread.
func (m *Message) IsThreadHead() bool {
	return m.ID == m.ThreadID
}

// MessageWithReplies is how search and the message facade present a
// message: the thread head plus the replies relevant to the request.
type MessageWithReplies struct {
	Message
	LastReplies []Message `json:"last_replies"`
}

// Key identifies a message.
type Key struct {
	CompanyID string
	ThreadID  string
	MessageID string
}

// Patch is the message save payload. A nil Files leaves files unchanged.
type Patch struct {
	Text  *string       `json:"text,omitempty"`
	Files []MessageFile `json:"files,omitempty"`
}

// CreateThreadRequest is the body of a thread creation.
type CreateThreadRequest struct {
	Participants []Participant `json:"participants"`
	Message      Patch         `json:"message"`
}

// NewThread is a created thread together with its first message.
type NewThread struct {
	Thread
	Message Message `json:"message"`
}
