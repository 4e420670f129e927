package channels

import "time"

// Channel visibilities.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Channel is a conversation space inside a workspace.
type Channel struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Visibility  string    `json:"visibility"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Members     []string  `json:"members"`
}

// HasMember reports whether userID belongs to the channel.
func (c *Channel) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Key identifies a channel.
type Key struct {
	CompanyID   string
	WorkspaceID string
	ChannelID   string
}

// Ref points at a channel from another resource, e.g. a thread participant.
type Ref struct {
	CompanyID   string `json:"company_id"`
	WorkspaceID string `json:"workspace_id"`
	ChannelID   string `json:"id"`
}

// Patch is the save payload. Nil fields are left unchanged; Members are added.
type Patch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Visibility  *string  `json:"visibility,omitempty"`
	Members     []string `json:"members,omitempty"`
}
