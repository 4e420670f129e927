package channels

import (
	"context"
	"errors"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	// ErrChannelRetired is returned when creating a channel under the key
	// of a deleted one. Threads posted to the deleted channel keep that key.
	ErrChannelRetired = errors.New("channel id belongs to a deleted channel")
)

// Repository stores channels and their members.
type Repository interface {
	GetChannel(ctx context.Context, key Key) (*Channel, error)
	// ListChannels returns up to limit channels of a workspace ordered by
	// (created_at, id), strictly after the cursor when given.
	ListChannels(ctx context.Context, companyID, workspaceID string, after *pagination.Cursor, limit int) ([]Channel, error)
	// CreateChannel stores ch with its members unless the key exists; it
	// returns the stored channel and whether it was created. Keys of deleted
	// channels fail with ErrChannelRetired.
	CreateChannel(ctx context.Context, ch Channel) (Channel, bool, error)
	UpdateChannel(ctx context.Context, ch Channel) error
	// DeleteChannel removes the channel and its members and retires its key.
	DeleteChannel(ctx context.Context, key Key) (bool, error)
	AddMembers(ctx context.Context, key Key, userIDs []string) error
	IsMember(ctx context.Context, key Key, userID string) (bool, error)
	MemberChannels(ctx context.Context, companyID, userID string) ([]Ref, error)
}
