// Package channels manages the channels of a workspace and who belongs to them.
package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

// FilterWorkspace scopes a list to one workspace. It is required.
const FilterWorkspace = "workspace_id"

const (
	resourceType  = "channel"
	maxNameLength = 256
)

// Service implements crud.Service[Key, Channel, Patch].
type Service struct {
	repo     Repository
	codec    *pagination.Codec
	notifier realtime.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, codec *pagination.Codec, notifier realtime.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		codec:    codec,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

var _ crud.Service[Key, Channel, Patch] = (*Service)(nil)

// Get returns the channel when it is public or the actor is a member.
func (s *Service) Get(ctx context.Context, key Key, ec *execution.Context) (*Channel, error) {
	if key.CompanyID != ec.Company.ID || !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	ch, err := s.repo.GetChannel(ctx, key)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !visible(ch, ec) {
		return nil, nil
	}
	return ch, nil
}

func (s *Service) List(ctx context.Context, q pagination.Query, filters crud.Filters, ec *execution.Context) (*pagination.ListResult[Channel], error) {
	if !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	workspaceID := filters.Get(FilterWorkspace)
	if workspaceID == "" {
		return nil, crud.Invalid("workspace_id is required")
	}

	fingerprint := pagination.Fingerprint([]string{resourceType, ec.Company.ID}, filters, FilterWorkspace)
	var after *pagination.Cursor
	var cursor pagination.Cursor
	resume, err := s.codec.Decode(q.PageToken, fingerprint, &cursor)
	if err != nil {
		return nil, err
	}
	if resume {
		after = &cursor
	}

	limit := s.codec.Limit(q.Limit)
	matches := make([]Channel, 0, limit+1)
	for len(matches) <= limit {
		batch, err := s.repo.ListChannels(ctx, ec.Company.ID, workspaceID, after, limit+1)
		if err != nil {
			return nil, err
		}
		for i := range batch {
			after = &pagination.Cursor{CreatedAt: batch[i].CreatedAt, ID: batch[i].ID}
			if !visible(&batch[i], ec) {
				continue
			}
			matches = append(matches, batch[i])
			if len(matches) > limit {
				break
			}
		}
		if len(batch) < limit+1 {
			break
		}
	}

	result := &pagination.ListResult[Channel]{Entities: matches}
	if len(matches) > limit {
		result.Entities = matches[:limit]
		last := result.Entities[limit-1]
		token, err := s.codec.Encode(cursorOf(last), fingerprint)
		if err != nil {
			return nil, err
		}
		result.NextPage.PageToken = token
	}
	return result, nil
}

// Save creates the channel when the key is new and updates it otherwise.
// Only members may update; an empty channel id creates a channel with a
// generated id.
func (s *Service) Save(ctx context.Context, key Key, patch Patch, ec *execution.Context) (*crud.SaveResult[Channel], error) {
	if key.CompanyID != ec.Company.ID || !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	if key.WorkspaceID == "" {
		return nil, crud.Invalid("workspace id is required")
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	if key.ChannelID != "" {
		existing, err := s.repo.GetChannel(ctx, key)
		if err != nil && !errors.Is(err, ErrChannelNotFound) {
			return nil, err
		}
		if existing != nil {
			return s.update(ctx, existing, patch, ec)
		}
	} else {
		key.ChannelID = uuid.NewString()
	}
	return s.create(ctx, key, patch, ec)
}

func (s *Service) create(ctx context.Context, key Key, patch Patch, ec *execution.Context) (*crud.SaveResult[Channel], error) {
	if patch.Name == nil || strings.TrimSpace(*patch.Name) == "" {
		return nil, crud.Invalid("name is required")
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	ch := Channel{
		ID:          key.ChannelID,
		CompanyID:   key.CompanyID,
		WorkspaceID: key.WorkspaceID,
		Name:        strings.TrimSpace(*patch.Name),
		Visibility:  VisibilityPublic,
		CreatedBy:   ec.User.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Members:     append([]string{ec.User.ID}, patch.Members...),
	}
	if patch.Description != nil {
		ch.Description = *patch.Description
	}
	if patch.Visibility != nil {
		ch.Visibility = *patch.Visibility
	}

	stored, created, err := s.repo.CreateChannel(ctx, ch)
	if err != nil {
		if errors.Is(err, ErrChannelRetired) {
			return nil, crud.Invalid("channel id %q belonged to a deleted channel", ch.ID)
		}
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if !created {
		// Lost a race with a concurrent create of the same id.
		return s.update(ctx, &stored, patch, ec)
	}
	s.logger.InfoContext(ctx, "channel created",
		logging.CompanyID(ch.CompanyID),
		logging.UserID(ec.User.ID),
		slog.String("channel_id", ch.ID))
	s.notifier.Notify(ctx, Rooms(ch.CompanyID, ch.WorkspaceID), realtime.ActionSaved, resourceType, stored)
	return &crud.SaveResult[Channel]{Entity: stored}, nil
}

func (s *Service) update(ctx context.Context, ch *Channel, patch Patch, ec *execution.Context) (*crud.SaveResult[Channel], error) {
	if !ch.HasMember(ec.User.ID) {
		return nil, crud.ErrAccessDenied
	}

	changed := false
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != ch.Name {
		ch.Name = strings.TrimSpace(*patch.Name)
		changed = true
	}
	if patch.Description != nil && *patch.Description != ch.Description {
		ch.Description = *patch.Description
		changed = true
	}
	if patch.Visibility != nil && *patch.Visibility != ch.Visibility {
		ch.Visibility = *patch.Visibility
		changed = true
	}
	key := keyOf(*ch)
	if changed {
		ch.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
		if err := s.repo.UpdateChannel(ctx, *ch); err != nil {
			return nil, fmt.Errorf("update channel: %w", err)
		}
	}

	var added []string
	for _, m := range dedupe(patch.Members) {
		if !ch.HasMember(m) {
			added = append(added, m)
		}
	}
	if len(added) > 0 {
		if err := s.repo.AddMembers(ctx, key, added); err != nil {
			return nil, fmt.Errorf("add members: %w", err)
		}
		ch.Members = append(ch.Members, added...)
		changed = true
	}

	if changed {
		s.notifier.Notify(ctx, Rooms(ch.CompanyID, ch.WorkspaceID), realtime.ActionSaved, resourceType, ch)
	}
	return &crud.SaveResult[Channel]{Entity: *ch}, nil
}

// Delete removes the channel. Only its creator or a company admin may; for
// anyone else, or when the channel does not exist, Deleted is false. The id
// cannot be reused afterwards, so the channel's threads stay unreadable.
func (s *Service) Delete(ctx context.Context, key Key, ec *execution.Context) (*crud.DeleteResult, error) {
	if key.CompanyID != ec.Company.ID || !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	ch, err := s.repo.GetChannel(ctx, key)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return &crud.DeleteResult{}, nil
		}
		return nil, err
	}
	if ch.CreatedBy != ec.User.ID && !ec.IsAdmin() {
		return &crud.DeleteResult{}, nil
	}

	removed, err := s.repo.DeleteChannel(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("delete channel: %w", err)
	}
	if removed {
		s.logger.InfoContext(ctx, "channel deleted",
			logging.CompanyID(key.CompanyID),
			logging.UserID(ec.User.ID),
			slog.String("channel_id", key.ChannelID))
		s.notifier.Notify(ctx, Rooms(key.CompanyID, key.WorkspaceID), realtime.ActionDeleted, resourceType, Ref{
			CompanyID:   key.CompanyID,
			WorkspaceID: key.WorkspaceID,
			ChannelID:   key.ChannelID,
		})
	}
	return &crud.DeleteResult{Deleted: removed}, nil
}

// IsMember reports whether userID belongs to the channel.
func (s *Service) IsMember(ctx context.Context, ref Ref, userID string) (bool, error) {
	return s.repo.IsMember(ctx, Key{CompanyID: ref.CompanyID, WorkspaceID: ref.WorkspaceID, ChannelID: ref.ChannelID}, userID)
}

// MemberChannels lists the channels of a company userID belongs to.
func (s *Service) MemberChannels(ctx context.Context, companyID, userID string) ([]Ref, error) {
	return s.repo.MemberChannels(ctx, companyID, userID)
}

// Rooms lists the realtime rooms of a workspace's channels.
func Rooms(companyID, workspaceID string) []realtime.Room {
	return []realtime.Room{realtime.CompanyChannelsRoom(companyID, workspaceID)}
}

func visible(ch *Channel, ec *execution.Context) bool {
	return ch.Visibility == VisibilityPublic || ch.HasMember(ec.User.ID)
}

func validatePatch(p Patch) error {
	if p.Name != nil && len(*p.Name) > maxNameLength {
		return crud.Invalid("name is longer than %d characters", maxNameLength)
	}
	if p.Visibility != nil && *p.Visibility != VisibilityPublic && *p.Visibility != VisibilityPrivate {
		return crud.Invalid("visibility must be %q or %q", VisibilityPublic, VisibilityPrivate)
	}
	return nil
}
