package messages

import (
	"log/slog"
	"net/http"

	"github.com/teamspace-hq/teamspace/common/httputil"
	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

func messageKey(r *http.Request, ec *execution.Context) (Key, error) {
	return Key{
		CompanyID: ec.Company.ID,
		ThreadID:  r.PathValue("thread_id"),
		MessageID: r.PathValue("message_id"),
	}, nil
}

// MessageBinding maps /companies/{company_id}/threads/{thread_id}/messages/{message_id}.
func MessageBinding(svc *Service) crud.Binding[Key] {
	return crud.Binding[Key]{
		Resource:    resourceType,
		Key:         messageKey,
		PathFilters: []string{FilterThread},
		Rooms: func(r *http.Request, ec *execution.Context, filters crud.Filters) []realtime.Room {
			return svc.ThreadRooms(r.Context(), filters.Get(FilterThread), ec)
		},
	}
}

// SearchBinding maps /companies/{company_id}/search. Both q and search
// carry the search text; search wins when a request sends both.
func SearchBinding() crud.Binding[Key] {
	return crud.Binding[Key]{
		Resource: "message_search",
		Key:      messageKey,
		QueryFilters: []crud.QueryParam{
			{Param: "search", Filter: FilterSearch},
			{Param: "q", Filter: FilterSearch},
			{Param: FilterSender, Filter: FilterSender},
			{Param: FilterHasFiles, Filter: FilterHasFiles},
			{Param: FilterWorkspace, Filter: FilterWorkspace},
			{Param: FilterChannel, Filter: FilterChannel},
		},
	}
}

func NewMessageController(svc *Service, signer *realtime.Signer) *crud.Controller[Key, Message, Patch] {
	return crud.NewController[Key, Message, Patch](svc, signer, MessageBinding(svc), svc.logger)
}

func NewSearchController(svc *SearchService, signer *realtime.Signer) *crud.Controller[Key, MessageWithReplies, Patch] {
	return crud.NewController[Key, MessageWithReplies, Patch](svc, signer, SearchBinding(), svc.logger)
}

// ThreadHandler serves thread creation, which has no single-entity key.
type ThreadHandler struct {
	svc    *Service
	logger *slog.Logger
}

func NewThreadHandler(svc *Service) *ThreadHandler {
	return &ThreadHandler{svc: svc, logger: svc.logger.With(logging.Resource("thread"))}
}

// Create handles POST /companies/{company_id}/threads.
func (h *ThreadHandler) Create(w http.ResponseWriter, r *http.Request) {
	ec, err := execution.FromRequest(r)
	if err != nil {
		crud.WriteError(w, err)
		return
	}

	var body crud.SaveRequest[CreateThreadRequest]
	if err := crud.DecodeBody(r, &body); err != nil {
		crud.WriteError(w, err)
		return
	}

	created, err := h.svc.CreateThread(r.Context(), body.Resource.Participants, body.Resource.Message, ec)
	if err != nil {
		if crud.StatusFor(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "thread creation failed", logging.Error(err))
		}
		crud.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, crud.UpdateResponse[NewThread]{Resource: *created})
}
