// Package messages stores threads and their messages, keeps the full-text
// index in step with them, and searches it on behalf of channel members.
package messages

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
	"github.com/teamspace-hq/teamspace/workspace/internal/metrics"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

// FilterThread scopes a message list to one thread. It is required.
const FilterThread = "thread_id"

const (
	resourceType   = "message"
	maxTextLength  = 64 << 10
	maxFiles       = 32
	maxParticipant = 16
)

// Service implements crud.Service[Key, Message, Patch] over the messages
// of one thread, plus thread creation.
//
// A message is visible to an actor who is a member of at least one channel
// the thread is posted to.
type Service struct {
	store    Store
	index    Index
	members  Membership
	codec    *pagination.Codec
	notifier realtime.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, index Index, members Membership, codec *pagination.Codec, notifier realtime.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		index:    index,
		members:  members,
		codec:    codec,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

var _ crud.Service[Key, Message, Patch] = (*Service)(nil)

// CreateThread posts a new thread to participants with message as its
// first message. The actor must be a member of every participant channel.
func (s *Service) CreateThread(ctx context.Context, participants []Participant, patch Patch, ec *execution.Context) (*NewThread, error) {
	if !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	if len(participants) == 0 {
		return nil, crud.Invalid("a thread needs at least one participant")
	}
	if len(participants) > maxParticipant {
		return nil, crud.Invalid("a thread has at most %d participants", maxParticipant)
	}
	for i := range participants {
		p := &participants[i]
		if p.Type == "" {
			p.Type = ParticipantChannel
		}
		if p.CompanyID == "" {
			p.CompanyID = ec.Company.ID
		}
		if p.Type != ParticipantChannel {
			return nil, crud.Invalid("unsupported participant type %q", p.Type)
		}
		if p.ID == "" || p.WorkspaceID == "" {
			return nil, crud.Invalid("participant channel and workspace ids are required")
		}
		if p.CompanyID != ec.Company.ID {
			return nil, crud.ErrAccessDenied
		}
		ok, err := s.members.IsMember(ctx, p.Ref(), ec.User.ID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return nil, crud.ErrAccessDenied
		}
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	thread := Thread{
		ID:           id,
		CompanyID:    ec.Company.ID,
		CreatedBy:    ec.User.ID,
		CreatedAt:    now,
		Participants: participants,
	}
	head, err := s.newMessage(&thread, id, patch, ec, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateThread(ctx, thread, head); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	s.logger.InfoContext(ctx, "thread created",
		logging.CompanyID(thread.CompanyID),
		logging.UserID(ec.User.ID),
		slog.String("thread_id", thread.ID))
	s.indexMessage(ctx, head)
	s.notifier.Notify(ctx, threadRooms(&thread), realtime.ActionSaved, resourceType, head)
	return &NewThread{Thread: thread, Message: head}, nil
}

// Reply appends a message to an existing thread.
func (s *Service) Reply(ctx context.Context, threadID string, patch Patch, ec *execution.Context) (*Message, error) {
	res, err := s.Save(ctx, Key{CompanyID: ec.Company.ID, ThreadID: threadID}, patch, ec)
	if err != nil {
		return nil, err
	}
	return &res.Entity, nil
}

func (s *Service) Get(ctx context.Context, key Key, ec *execution.Context) (*Message, error) {
	if key.CompanyID != ec.Company.ID || !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	thread, err := s.visibleThread(ctx, key.CompanyID, key.ThreadID, ec)
	if err != nil || thread == nil {
		return nil, err
	}
	msg, err := s.store.GetMessage(ctx, key.CompanyID, key.ThreadID, key.MessageID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrThreadNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// List returns the messages of the thread named by the thread_id filter,
// oldest first.
func (s *Service) List(ctx context.Context, q pagination.Query, filters crud.Filters, ec *execution.Context) (*pagination.ListResult[Message], error) {
	if !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	threadID := filters.Get(FilterThread)
	if threadID == "" {
		return nil, crud.Invalid("thread_id is required")
	}
	thread, err := s.store.GetThread(ctx, ec.Company.ID, threadID)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			return nil, crud.ErrNotFound
		}
		return nil, err
	}
	ok, err := s.canSee(ctx, thread, ec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, crud.ErrAccessDenied
	}

	fingerprint := pagination.Fingerprint([]string{resourceType, ec.Company.ID}, filters, FilterThread)
	var cursor pagination.Cursor
	resume, err := s.codec.Decode(q.PageToken, fingerprint, &cursor)
	if err != nil {
		return nil, err
	}
	var after *pagination.Cursor
	if resume {
		after = &cursor
	}

	limit := s.codec.Limit(q.Limit)
	rows, err := s.store.ListMessages(ctx, ec.Company.ID, threadID, after, limit+1)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			return nil, crud.ErrNotFound
		}
		return nil, err
	}

	result := &pagination.ListResult[Message]{Entities: rows}
	if len(rows) > limit {
		result.Entities = rows[:limit]
		token, err := s.codec.Encode(messageCursor(rows[limit-1]), fingerprint)
		if err != nil {
			return nil, err
		}
		result.NextPage.PageToken = token
	}
	return result, nil
}

// Save edits the actor's own message, or creates a reply when the message
// id is empty or unknown. Saving unchanged content is a no-op.
func (s *Service) Save(ctx context.Context, key Key, patch Patch, ec *execution.Context) (*crud.SaveResult[Message], error) {
	if key.CompanyID != ec.Company.ID || !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	if key.ThreadID == "" {
		return nil, crud.Invalid("thread id is required")
	}
	thread, err := s.store.GetThread(ctx, key.CompanyID, key.ThreadID)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			return nil, crud.Invalid("thread %q does not exist", key.ThreadID)
		}
		return nil, err
	}
	ok, err := s.canSee(ctx, thread, ec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, crud.ErrAccessDenied
	}

	if key.MessageID != "" {
		existing, err := s.store.GetMessage(ctx, key.CompanyID, key.ThreadID, key.MessageID)
		if err != nil && !errors.Is(err, ErrMessageNotFound) {
			return nil, err
		}
		if existing != nil {
			return s.edit(ctx, thread, existing, patch, ec)
		}
	}
	return s.reply(ctx, thread, key.MessageID, patch, ec)
}

func (s *Service) reply(ctx context.Context, thread *Thread, id string, patch Patch, ec *execution.Context) (*crud.SaveResult[Message], error) {
	if id == "" {
		var err error
		if id, err = newID(); err != nil {
			return nil, err
		}
	}
	msg, err := s.newMessage(thread, id, patch, ec, s.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return nil, err
	}
	inserted, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		existing, err := s.store.GetMessage(ctx, msg.CompanyID, msg.ThreadID, msg.ID)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrThreadNotFound) {
				return nil, crud.Invalid("thread %q does not exist", thread.ID)
			}
			return nil, err
		}
		return s.edit(ctx, thread, existing, patch, ec)
	}

	s.indexMessage(ctx, msg)
	s.notifier.Notify(ctx, threadRooms(thread), realtime.ActionSaved, resourceType, msg)
	return &crud.SaveResult[Message]{Entity: msg}, nil
}

func (s *Service) edit(ctx context.Context, thread *Thread, msg *Message, patch Patch, ec *execution.Context) (*crud.SaveResult[Message], error) {
	if msg.UserID != ec.User.ID {
		return nil, crud.ErrAccessDenied
	}
	if err := validateContent(patch, msg.Text, msg.Files); err != nil {
		return nil, err
	}

	changed := false
	if patch.Text != nil && *patch.Text != msg.Text {
		msg.Text = *patch.Text
		changed = true
	}
	if patch.Files != nil && !sameFiles(patch.Files, msg.Files) {
		msg.Files = withFileIDs(patch.Files)
		changed = true
	}
	if !changed {
		return &crud.SaveResult[Message]{Entity: *msg}, nil
	}

	msg.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	if err := s.store.UpdateMessage(ctx, *msg); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	s.indexMessage(ctx, *msg)
	s.notifier.Notify(ctx, threadRooms(thread), realtime.ActionSaved, resourceType, *msg)
	return &crud.SaveResult[Message]{Entity: *msg}, nil
}

// Delete removes the actor's own message. The first message of a thread
// goes only once its replies are gone, and takes the thread with it.
// Deleted is false when nothing the actor may delete exists.
func (s *Service) Delete(ctx context.Context, key Key, ec *execution.Context) (*crud.DeleteResult, error) {
	if key.CompanyID != ec.Company.ID || !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	thread, err := s.visibleThread(ctx, key.CompanyID, key.ThreadID, ec)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return &crud.DeleteResult{}, nil
	}
	msg, err := s.store.GetMessage(ctx, key.CompanyID, key.ThreadID, key.MessageID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrThreadNotFound) {
			return &crud.DeleteResult{}, nil
		}
		return nil, err
	}
	if msg.UserID != ec.User.ID {
		return &crud.DeleteResult{}, nil
	}

	var removed bool
	if msg.IsThreadHead() {
		replies, err := s.store.CountReplies(ctx, key.CompanyID, key.ThreadID)
		if err != nil {
			return nil, err
		}
		if replies > 0 {
			return &crud.DeleteResult{}, nil
		}
		removed, err = s.store.DeleteThread(ctx, key.CompanyID, key.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("delete thread: %w", err)
		}
	} else {
		removed, err = s.store.DeleteMessage(ctx, key.CompanyID, key.ThreadID, key.MessageID)
		if err != nil {
			return nil, fmt.Errorf("delete message: %w", err)
		}
	}
	if !removed {
		return &crud.DeleteResult{}, nil
	}

	if err := s.index.Remove(ctx, key.CompanyID, key.ThreadID, key.MessageID); err != nil {
		metrics.IndexErrors.WithLabelValues("remove").Inc()
		s.logger.WarnContext(ctx, "failed to remove message from index",
			slog.String("message_id", key.MessageID), logging.Error(err))
	}
	s.notifier.Notify(ctx, threadRooms(thread), realtime.ActionDeleted, resourceType, Message{
		ID:          msg.ID,
		ThreadID:    msg.ThreadID,
		CompanyID:   msg.CompanyID,
		WorkspaceID: msg.WorkspaceID,
		ChannelID:   msg.ChannelID,
	})
	return &crud.DeleteResult{Deleted: true}, nil
}

// ThreadRooms lists the feed rooms of a thread's channels when the actor
// may see the thread, and nothing otherwise.
func (s *Service) ThreadRooms(ctx context.Context, threadID string, ec *execution.Context) []realtime.Room {
	thread, err := s.visibleThread(ctx, ec.Company.ID, threadID, ec)
	if err != nil || thread == nil {
		return nil
	}
	return threadRooms(thread)
}

func threadRooms(thread *Thread) []realtime.Room {
	rooms := make([]realtime.Room, 0, len(thread.Participants))
	for _, p := range thread.Participants {
		if p.Type == ParticipantChannel {
			rooms = append(rooms, realtime.ChannelFeedRoom(p.CompanyID, p.WorkspaceID, p.ID))
		}
	}
	return rooms
}

// visibleThread returns nil, nil when the thread is missing or hidden.
func (s *Service) visibleThread(ctx context.Context, companyID, threadID string, ec *execution.Context) (*Thread, error) {
	thread, err := s.store.GetThread(ctx, companyID, threadID)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			return nil, nil
		}
		return nil, err
	}
	ok, err := s.canSee(ctx, thread, ec)
	if err != nil || !ok {
		return nil, err
	}
	return thread, nil
}

func (s *Service) canSee(ctx context.Context, thread *Thread, ec *execution.Context) (bool, error) {
	for _, p := range thread.Participants {
		if p.Type != ParticipantChannel || p.CompanyID != ec.Company.ID {
			continue
		}
		ok, err := s.members.IsMember(ctx, p.Ref(), ec.User.ID)
		if err != nil {
			return false, fmt.Errorf("check membership: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// newMessage builds a message of thread posted in its first channel.
func (s *Service) newMessage(thread *Thread, id string, patch Patch, ec *execution.Context, now time.Time) (Message, error) {
	if err := validateContent(patch, "", nil); err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:        id,
		ThreadID:  thread.ID,
		CompanyID: thread.CompanyID,
		UserID:    ec.User.ID,
		Files:     withFileIDs(patch.Files),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if patch.Text != nil {
		msg.Text = *patch.Text
	}
	if len(thread.Participants) > 0 {
		msg.WorkspaceID = thread.Participants[0].WorkspaceID
		msg.ChannelID = thread.Participants[0].ID
	}
	return msg, nil
}

// indexMessage writes msg to the search index. The store stays the source
// of truth, so a failed write is logged and counted but not returned.
func (s *Service) indexMessage(ctx context.Context, msg Message) {
	if err := s.index.Upsert(ctx, msg); err != nil {
		metrics.IndexErrors.WithLabelValues("upsert").Inc()
		s.logger.WarnContext(ctx, "failed to index message",
			slog.String("message_id", msg.ID), logging.Error(err))
	}
}

func validateContent(patch Patch, text string, files []MessageFile) error {
	if patch.Text != nil {
		text = *patch.Text
	}
	if patch.Files != nil {
		files = patch.Files
	}
	if strings.TrimSpace(text) == "" && len(files) == 0 {
		return crud.Invalid("a message needs text or files")
	}
	if len(text) > maxTextLength {
		return crud.Invalid("text is longer than %d bytes", maxTextLength)
	}
	if len(files) > maxFiles {
		return crud.Invalid("a message has at most %d files", maxFiles)
	}
	return nil
}

func withFileIDs(files []MessageFile) []MessageFile {
	if len(files) == 0 {
		return nil
	}
	out := make([]MessageFile, len(files))
	for i, f := range files {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		out[i] = f
	}
	return out
}

func sameFiles(a, b []MessageFile) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Metadata != b[i].Metadata || (a[i].ID != "" && a[i].ID != b[i].ID) {
			return false
		}
	}
	return true
}

// newID returns a time-ordered id so messages created within the same
// millisecond still sort in creation order.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}
