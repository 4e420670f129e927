package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/metrics"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// Search filters.
const (
	FilterSearch    = "search"
	FilterSender    = "sender"
	FilterHasFiles  = "has_files"
	FilterWorkspace = "workspace_id"
	FilterChannel   = "channel_id"
)

var searchFilters = []string{FilterSearch, FilterSender, FilterHasFiles, FilterWorkspace, FilterChannel}

// SearchService implements crud.Service[Key, MessageWithReplies, Patch].
// List searches the index; the other operations go through Service and
// shape the result the same way search hits are shaped.
type SearchService struct {
	messages *Service
	logger   *slog.Logger
}

func NewSearchService(messages *Service) *SearchService {
	return &SearchService{messages: messages, logger: messages.logger}
}

var _ crud.Service[Key, MessageWithReplies, Patch] = (*SearchService)(nil)

// List returns the messages matching the search filter, newest first,
// restricted to the company and to channels the actor is a member of.
func (s *SearchService) List(ctx context.Context, q pagination.Query, filters crud.Filters, ec *execution.Context) (*pagination.ListResult[MessageWithReplies], error) {
	if !ec.IsMember() {
		return nil, crud.ErrAccessDenied
	}
	text := strings.TrimSpace(filters.Get(FilterSearch))
	if text == "" {
		return nil, crud.Invalid("search text is required")
	}
	var hasFiles *bool
	if raw := filters.Get(FilterHasFiles); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, crud.Invalid("has_files must be true or false")
		}
		hasFiles = &v
	}

	fingerprint := pagination.Fingerprint([]string{"search", ec.Company.ID}, filters, searchFilters...)
	var cursor pagination.Cursor
	resume, err := s.messages.codec.Decode(q.PageToken, fingerprint, &cursor)
	if err != nil {
		return nil, err
	}
	var after *pagination.Cursor
	if resume {
		after = &cursor
	}

	refs, err := s.messages.members.MemberChannels(ctx, ec.Company.ID, ec.User.ID)
	if err != nil {
		return nil, fmt.Errorf("list member channels: %w", err)
	}
	refs = restrictChannels(refs, filters.Get(FilterWorkspace), filters.Get(FilterChannel))
	if len(refs) == 0 {
		return &pagination.ListResult[MessageWithReplies]{Entities: []MessageWithReplies{}}, nil
	}

	limit := s.messages.codec.Limit(q.Limit)
	index := s.messages.index
	start := time.Now()
	hits, err := index.Search(ctx, SearchQuery{
		CompanyID: ec.Company.ID,
		Text:      text,
		Sender:    filters.Get(FilterSender),
		HasFiles:  hasFiles,
		Channels:  refs,
		After:     after,
		Limit:     limit + 1,
	})
	metrics.SearchDuration.WithLabelValues(index.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search %s index: %w", index.Name(), err)
	}

	result := &pagination.ListResult[MessageWithReplies]{}
	if len(hits) > limit {
		hits = hits[:limit]
		token, err := s.messages.codec.Encode(messageCursor(hits[limit-1]), fingerprint)
		if err != nil {
			return nil, err
		}
		result.NextPage.PageToken = token
	}

	result.Entities = make([]MessageWithReplies, 0, len(hits))
	for _, hit := range hits {
		// The store is the source of truth; hits it no longer has are stale.
		current, err := s.messages.store.GetMessage(ctx, hit.CompanyID, hit.ThreadID, hit.ID)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrThreadNotFound) {
				s.logger.DebugContext(ctx, "skipping stale search hit", slog.String("message_id", hit.ID))
				continue
			}
			return nil, err
		}
		shaped, err := s.shape(ctx, *current)
		if err != nil {
			return nil, err
		}
		result.Entities = append(result.Entities, *shaped)
	}

	s.logger.DebugContext(ctx, "message search",
		logging.CompanyID(ec.Company.ID),
		logging.UserID(ec.User.ID),
		slog.Int("hits", len(result.Entities)),
		logging.Duration(time.Since(start)))
	return result, nil
}

func (s *SearchService) Get(ctx context.Context, key Key, ec *execution.Context) (*MessageWithReplies, error) {
	msg, err := s.messages.Get(ctx, key, ec)
	if err != nil || msg == nil {
		return nil, err
	}
	return s.shape(ctx, *msg)
}

func (s *SearchService) Save(ctx context.Context, key Key, patch Patch, ec *execution.Context) (*crud.SaveResult[MessageWithReplies], error) {
	res, err := s.messages.Save(ctx, key, patch, ec)
	if err != nil {
		return nil, err
	}
	shaped, err := s.shape(ctx, res.Entity)
	if err != nil {
		return nil, err
	}
	return &crud.SaveResult[MessageWithReplies]{Entity: *shaped}, nil
}

func (s *SearchService) Delete(ctx context.Context, key Key, ec *execution.Context) (*crud.DeleteResult, error) {
	return s.messages.Delete(ctx, key, ec)
}

// shape presents msg as its thread head. A reply becomes the head with
// last_replies = [msg]; a head carries no replies.
func (s *SearchService) shape(ctx context.Context, msg Message) (*MessageWithReplies, error) {
	if msg.IsThreadHead() {
		return &MessageWithReplies{Message: msg, LastReplies: []Message{}}, nil
	}
	head, err := s.messages.store.GetMessage(ctx, msg.CompanyID, msg.ThreadID, msg.ThreadID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrThreadNotFound) {
			return &MessageWithReplies{Message: msg, LastReplies: []Message{}}, nil
		}
		return nil, err
	}
	return &MessageWithReplies{Message: *head, LastReplies: []Message{msg}}, nil
}

func restrictChannels(refs []channels.Ref, workspaceID, channelID string) []channels.Ref {
	out := make([]channels.Ref, 0, len(refs))
	for _, ref := range refs {
		if workspaceID != "" && ref.WorkspaceID != workspaceID {
			continue
		}
		if channelID != "" && ref.ChannelID != channelID {
			continue
		}
		out = append(out, ref)
	}
	return out
}
