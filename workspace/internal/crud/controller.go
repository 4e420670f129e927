package crud

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/teamspace-hq/teamspace/common/httputil"
	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/metrics"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

const maxBodyBytes = 1 << 20

// Binding tells a Controller how to read one resource family off a request.
type Binding[K any] struct {
	// Resource names the family in logs, e.g. "application".
	Resource string

	// Key builds the entity key from the request path.
	Key func(r *http.Request, ec *execution.Context) (K, error)

	// QueryFilters maps query parameters to filter names. Parameters not
	// listed are not forwarded. When several parameters feed one filter the
	// first one present wins.
	QueryFilters []QueryParam

	// PathFilters lists path wildcards copied into the filters under the
	// same name.
	PathFilters []string

	// Rooms lists the realtime rooms a list response offers to the caller.
	// Lookups it needs are best effort; on failure it returns no rooms.
	Rooms func(r *http.Request, ec *execution.Context, filters Filters) []realtime.Room
}

// QueryParam forwards the query parameter Param as the filter Filter.
type QueryParam struct {
	Param  string
	Filter string
}

// Controller binds a Service to HTTP handlers. Each handler runs
// build context → call service → compose envelope and stops at the first
// failure.
type Controller[K, T, P any] struct {
	service Service[K, T, P]
	signer  *realtime.Signer
	binding Binding[K]
	logger  *slog.Logger
}

func NewController[K, T, P any](service Service[K, T, P], signer *realtime.Signer, binding Binding[K], logger *slog.Logger) *Controller[K, T, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller[K, T, P]{
		service: service,
		signer:  signer,
		binding: binding,
		logger:  logger.With(logging.Resource(binding.Resource)),
	}
}

// Get handles GET on a single resource.
func (c *Controller[K, T, P]) Get(w http.ResponseWriter, r *http.Request) {
	ec, key, ok := c.prepare(w, r)
	if !ok {
		return
	}
	entity, err := c.service.Get(r.Context(), key, ec)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, GetResponse[T]{Resource: entity})
}

// List handles GET on a collection.
func (c *Controller[K, T, P]) List(w http.ResponseWriter, r *http.Request) {
	ec, err := execution.FromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	query := r.URL.Query()
	q := pagination.Query{
		PageToken: query.Get("page_token"),
		Limit:     httputil.ParseIntParam(query.Get("limit"), 0),
	}
	filters := c.filters(r)

	result, err := c.service.List(r.Context(), q, filters, ec)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	var rooms []realtime.Room
	if c.binding.Rooms != nil {
		rooms = c.binding.Rooms(r, ec, filters)
	}
	signed := c.signer.Sign(rooms, ec.User.ID)
	metrics.RecordSigning(signed.Unavailable, signed.Err)
	if signed.Err != nil {
		c.logger.WarnContext(r.Context(), "room signing failed", logging.Error(signed.Err))
	}

	entities := result.Entities
	if entities == nil {
		entities = []T{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse[T]{
		Resources:     entities,
		NextPageToken: result.NextPage.PageToken,
		Websockets:    signed.OrEmpty(),
	})
}

// Save handles POST and PUT on a single resource.
func (c *Controller[K, T, P]) Save(w http.ResponseWriter, r *http.Request) {
	ec, key, ok := c.prepare(w, r)
	if !ok {
		return
	}

	var body SaveRequest[P]
	if err := DecodeBody(r, &body); err != nil {
		c.fail(w, r, err)
		return
	}

	result, err := c.service.Save(r.Context(), key, body.Resource, ec)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UpdateResponse[T]{Resource: result.Entity})
}

// Delete handles DELETE on a single resource.
func (c *Controller[K, T, P]) Delete(w http.ResponseWriter, r *http.Request) {
	ec, key, ok := c.prepare(w, r)
	if !ok {
		return
	}
	result, err := c.service.Delete(r.Context(), key, ec)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	status := StatusError
	if result != nil && result.Deleted {
		status = StatusSuccess
	}
	httputil.WriteJSON(w, http.StatusOK, DeleteResponse{Status: status})
}

func (c *Controller[K, T, P]) prepare(w http.ResponseWriter, r *http.Request) (*execution.Context, K, bool) {
	var zero K
	ec, err := execution.FromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return nil, zero, false
	}
	key, err := c.binding.Key(r, ec)
	if err != nil {
		c.fail(w, r, err)
		return nil, zero, false
	}
	return ec, key, true
}

func (c *Controller[K, T, P]) filters(r *http.Request) Filters {
	filters := Filters{}
	query := r.URL.Query()
	for _, p := range c.binding.QueryFilters {
		if _, set := filters[p.Filter]; set {
			continue
		}
		if v := query.Get(p.Param); v != "" {
			filters[p.Filter] = v
		}
	}
	for _, name := range c.binding.PathFilters {
		if v := r.PathValue(name); v != "" {
			filters[name] = v
		}
	}
	return filters
}

func (c *Controller[K, T, P]) fail(w http.ResponseWriter, r *http.Request, err error) {
	if StatusFor(err) == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed",
			logging.Method(r.Method),
			slog.String("path", r.URL.Path),
			logging.Error(err))
	}
	WriteError(w, err)
}

// DecodeBody reads a JSON request body into dst. Empty and malformed bodies
// are validation errors.
func DecodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return Invalid("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return Invalid("request body is required")
		}
		return Invalid("malformed JSON body: %v", err)
	}
	return nil
}
