package messages

import (
	"context"
	"errors"

	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Membership answers channel membership questions for message visibility.
// channels.Service implements it.
type Membership interface {
	IsMember(ctx context.Context, ref channels.Ref, userID string) (bool, error)
	MemberChannels(ctx context.Context, companyID, userID string) ([]channels.Ref, error)
}

// Store persists threads and messages. It is the source of truth; the
// search Index is derived from it.
type Store interface {
	// CreateThread stores the thread and its first message atomically.
	CreateThread(ctx context.Context, thread Thread, head Message) error
	GetThread(ctx context.Context, companyID, threadID string) (*Thread, error)
	// DeleteThread removes the thread with all its messages.
	DeleteThread(ctx context.Context, companyID, threadID string) (bool, error)

	GetMessage(ctx context.Context, companyID, threadID, messageID string) (*Message, error)
	// ListMessages returns up to limit messages of a thread, oldest first,
	// strictly after the cursor when given.
	ListMessages(ctx context.Context, companyID, threadID string, after *pagination.Cursor, limit int) ([]Message, error)
	// InsertMessage stores msg unless its id exists or its thread is gone,
	// and reports whether it did.
	InsertMessage(ctx context.Context, msg Message) (bool, error)
	UpdateMessage(ctx context.Context, msg Message) error
	DeleteMessage(ctx context.Context, companyID, threadID, messageID string) (bool, error)
	CountReplies(ctx context.Context, companyID, threadID string) (int, error)
}
