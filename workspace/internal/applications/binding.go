package applications

import (
	"net/http"

	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

// Binding maps /companies/{company_id}/applications/{application_id} onto Service.
func Binding() crud.Binding[Key] {
	return crud.Binding[Key]{
		Resource: resourceType,
		Key: func(r *http.Request, ec *execution.Context) (Key, error) {
			return Key{CompanyID: ec.Company.ID, ApplicationID: r.PathValue("application_id")}, nil
		},
		QueryFilters: []crud.QueryParam{{Param: "search", Filter: FilterSearch}},
		Rooms: func(_ *http.Request, ec *execution.Context, _ crud.Filters) []realtime.Room {
			return Rooms(ec)
		},
	}
}

// NewController returns the HTTP controller for company applications.
func NewController(svc *Service, signer *realtime.Signer) *crud.Controller[Key, CompanyApplication, Patch] {
	return crud.NewController[Key, CompanyApplication, Patch](svc, signer, Binding(), svc.logger)
}
