package channels

import (
	"net/http"

	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

// Binding maps /companies/{company_id}/workspaces/{workspace_id}/channels/{channel_id}.
func Binding() crud.Binding[Key] {
	return crud.Binding[Key]{
		Resource: resourceType,
		Key: func(r *http.Request, ec *execution.Context) (Key, error) {
			return Key{
				CompanyID:   ec.Company.ID,
				WorkspaceID: r.PathValue("workspace_id"),
				ChannelID:   r.PathValue("channel_id"),
			}, nil
		},
		PathFilters: []string{FilterWorkspace},
		Rooms: func(r *http.Request, ec *execution.Context, filters crud.Filters) []realtime.Room {
			return Rooms(ec.Company.ID, filters.Get(FilterWorkspace))
		},
	}
}

func NewController(svc *Service, signer *realtime.Signer) *crud.Controller[Key, Channel, Patch] {
	return crud.NewController[Key, Channel, Patch](svc, signer, Binding(), svc.logger)
}
