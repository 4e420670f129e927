package messages

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

func (f *fixture) find(userID string, q pagination.Query, filters crud.Filters) []MessageWithReplies {
	f.t.Helper()
	res, err := f.search.List(f.ctx, q, filters, actor(f.t, userID))
	require.NoError(f.t, err)
	return res.Entities
}

func TestSearch_FindsMessagesAndReplies(t *testing.T) {
	f := newFixture(t)
	general := f.channel("general", "alice")

	first := f.thread("alice", "First thread", general)
	f.reply("alice", first, "First reply of first thread")
	f.reply("alice", first, "Second reply of first thread")

	second := f.thread("alice", "Another thread", general)
	f.reply("alice", second, "First reply of second thread")
	f.reply("alice", second, "Second reply of second thread")

	search := func(text string) []MessageWithReplies {
		return f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: text})
	}

	resources := search("Reply")
	assert.Len(t, resources, 4)
	for _, r := range resources {
		assert.Len(t, r.LastReplies, 1)
		assert.True(t, r.IsThreadHead())
		assert.Equal(t, r.ThreadID, r.LastReplies[0].ThreadID)
	}

	assert.Empty(t, search("fdfsd"))
	assert.Len(t, search("first"), 4)
	assert.Len(t, search("second"), 3)

	resources = search("another")
	require.Len(t, resources, 1)
	assert.Empty(t, resources[0].LastReplies)
	assert.NotNil(t, resources[0].LastReplies)

	// Every term must match, newest first.
	resources = search("first sec")
	require.Len(t, resources, 2)
	assert.Equal(t, "First reply of second thread", resources[0].LastReplies[0].Text)
	assert.Equal(t, "Second reply of first thread", resources[1].LastReplies[0].Text)
}

func TestSearch_FiltersChannelsSenderAndFiles(t *testing.T) {
	f := newFixture(t)
	const other = "bob"
	mine := f.channel("mine", "alice", other)
	theirs := f.channel("theirs", "carol")
	file := MessageFile{Metadata: FileMetadata{Name: "test"}}

	first := f.thread("alice", "Filtered thread", mine)
	f.reply("alice", first, "Filtered message 1")
	f.reply("alice", first, "Filtered message 2")
	f.reply("alice", first, "Filtered message 3")
	f.reply("alice", first, "Filtered message 4", file)

	second := f.thread("carol", "Filtered thread 2", theirs)
	f.reply("carol", second, "Filtered message 5")
	f.reply("carol", second, "Filtered message 6")
	f.reply("carol", second, "Filtered message 7")
	f.reply("carol", second, "Filtered message 8")

	third := f.thread("alice", "Filtered thread 3", mine)
	f.reply("alice", third, "Filtered message 9")
	f.reply(other, third, "Filtered message 10")
	f.reply(other, third, "Filtered message 11")
	f.reply(other, third, "Filtered message 12", file)

	page := pagination.Query{Limit: 9}
	res, err := f.search.List(f.ctx, page, crud.Filters{FilterSearch: "Filtered"}, actor(t, "alice"))
	require.NoError(t, err)
	assert.Len(t, res.Entities, 9)
	require.NotEmpty(t, res.NextPage.PageToken)

	page.PageToken = res.NextPage.PageToken
	rest, err := f.search.List(f.ctx, page, crud.Filters{FilterSearch: "Filtered"}, actor(t, "alice"))
	require.NoError(t, err)
	require.Len(t, rest.Entities, 1)
	assert.Equal(t, "Filtered thread", rest.Entities[0].Text)
	assert.Empty(t, rest.NextPage.PageToken)

	assert.Empty(t, f.find("alice", pagination.Query{Limit: 10}, crud.Filters{FilterSearch: "Nothing"}))
	assert.Len(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "Filtered", FilterSender: other}), 3)
	assert.Len(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "Filtered", FilterHasFiles: "true"}), 2)
	assert.Len(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "Filtered", FilterSender: other, FilterHasFiles: "true"}), 1)
	assert.Len(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "Filtered", FilterHasFiles: "false"}), 8)

	// carol sees only her own channel.
	assert.Len(t, f.find("carol", pagination.Query{}, crud.Filters{FilterSearch: "Filtered"}), 5)
	assert.Empty(t, f.find("carol", pagination.Query{}, crud.Filters{FilterSearch: "Filtered", FilterChannel: "mine"}))
	assert.Empty(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "Filtered", FilterWorkspace: "w2"}))
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t)
	alice := actor(t, "alice")

	_, err := f.search.List(f.ctx, pagination.Query{}, crud.Filters{}, alice)
	assert.ErrorIs(t, err, crud.ErrValidation)

	_, err = f.search.List(f.ctx, pagination.Query{}, crud.Filters{FilterSearch: "x", FilterHasFiles: "maybe"}, alice)
	assert.ErrorIs(t, err, crud.ErrValidation)

	guest, err := execution.Build(execution.RequestInfo{
		CompanyID: company,
		Actor:     &execution.Actor{ID: "guest"},
	})
	require.NoError(t, err)
	_, err = f.search.List(f.ctx, pagination.Query{}, crud.Filters{FilterSearch: "x"}, guest)
	assert.ErrorIs(t, err, crud.ErrAccessDenied)
}

func TestSearch_CursorBoundToFilters(t *testing.T) {
	f := newFixture(t)
	general := f.channel("general", "alice")
	for i := 0; i < 3; i++ {
		f.thread("alice", "status report", general)
	}

	res, err := f.search.List(f.ctx, pagination.Query{Limit: 1}, crud.Filters{FilterSearch: "status"}, actor(t, "alice"))
	require.NoError(t, err)
	require.NotEmpty(t, res.NextPage.PageToken)

	_, err = f.search.List(f.ctx, pagination.Query{Limit: 1, PageToken: res.NextPage.PageToken},
		crud.Filters{FilterSearch: "report"}, actor(t, "alice"))
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)

	elsewhere, err := execution.Build(execution.RequestInfo{
		CompanyID: "c2",
		Actor:     &execution.Actor{ID: "alice", Companies: map[string]execution.Role{"c2": execution.RoleMember}},
	})
	require.NoError(t, err)
	_, err = f.search.List(f.ctx, pagination.Query{Limit: 1, PageToken: res.NextPage.PageToken},
		crud.Filters{FilterSearch: "status"}, elsewhere)
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
}

func TestSearch_SkipsStaleHits(t *testing.T) {
	f := newFixture(t)
	general := f.channel("general", "alice")
	threadID := f.thread("alice", "ghost", general)
	_, err := f.store.DeleteThread(f.ctx, company, threadID)
	require.NoError(t, err)

	assert.Empty(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "ghost"}))
}

func TestSearch_DeletedChannelStaysHidden(t *testing.T) {
	f := newFixture(t)
	secret := f.channel("secret", "alice")
	f.thread("alice", "payroll numbers", secret)
	payroll := crud.Filters{FilterSearch: "payroll"}
	assert.Empty(t, f.find("mallory", pagination.Query{}, payroll))

	key := channels.Key{CompanyID: company, WorkspaceID: workspace, ChannelID: "secret"}
	res, err := f.channels.Delete(f.ctx, key, actor(t, "alice"))
	require.NoError(t, err)
	require.True(t, res.Deleted)

	name := "secret"
	_, err = f.channels.Save(f.ctx, key, channels.Patch{Name: &name}, actor(t, "mallory"))
	assert.ErrorIs(t, err, crud.ErrValidation)
	assert.Empty(t, f.find("mallory", pagination.Query{}, payroll))
}

func TestSearch_SameMessageIDInTwoThreads(t *testing.T) {
	f := newFixture(t)
	general := f.channel("general", "alice", "bob")
	first := f.thread("alice", "apple pie", general)
	tart := f.reply("alice", first, "apple tart")
	second := f.thread("bob", "banana bread", general)
	bob := actor(t, "bob")
	apple := crud.Filters{FilterSearch: "apple"}
	require.Len(t, f.find("alice", pagination.Query{}, apple), 2)

	// bob reuses alice's reply id in his own thread, then deletes it.
	key := Key{CompanyID: company, ThreadID: second, MessageID: tart.ID}
	saved, err := f.svc.Save(f.ctx, key, Patch{Text: text("banana split")}, bob)
	require.NoError(t, err)
	assert.Equal(t, second, saved.Entity.ThreadID)
	assert.Len(t, f.find("alice", pagination.Query{}, apple), 2)
	assert.Len(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "banana"}), 2)

	del, err := f.svc.Delete(f.ctx, key, bob)
	require.NoError(t, err)
	require.True(t, del.Deleted)

	hits := f.find("alice", pagination.Query{}, apple)
	require.Len(t, hits, 2)
	assert.Equal(t, "apple tart", hits[0].Text)
	assert.Len(t, f.find("alice", pagination.Query{}, crud.Filters{FilterSearch: "banana"}), 1)
}

func TestSearch_ShapesGetAndSave(t *testing.T) {
	f := newFixture(t)
	general := f.channel("general", "alice")
	threadID := f.thread("alice", "head", general)
	alice := actor(t, "alice")

	saved, err := f.search.Save(f.ctx, Key{CompanyID: company, ThreadID: threadID}, Patch{Text: text("a reply")}, alice)
	require.NoError(t, err)
	assert.Equal(t, "head", saved.Entity.Text)
	require.Len(t, saved.Entity.LastReplies, 1)
	assert.Equal(t, "a reply", saved.Entity.LastReplies[0].Text)

	got, err := f.search.Get(f.ctx, Key{CompanyID: company, ThreadID: threadID, MessageID: threadID}, alice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.LastReplies)

	del, err := f.search.Delete(f.ctx, Key{CompanyID: company, ThreadID: threadID, MessageID: saved.Entity.LastReplies[0].ID}, alice)
	require.NoError(t, err)
	assert.True(t, del.Deleted)
}

func TestSearchController_QueryParameter(t *testing.T) {
	f := newFixture(t)
	general := f.channel("general", "alice")
	f.thread("alice", "Quarterly planning", general)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /companies/{company_id}/search", NewSearchController(f.search, nil).List)

	params := url.Values{"q": {"quarter"}}
	req := httptest.NewRequest(http.MethodGet, "/companies/c1/search?"+params.Encode(), nil)
	req = req.WithContext(execution.WithActor(req.Context(), &execution.Actor{
		ID:        "alice",
		Companies: map[string]execution.Role{company: execution.RoleMember},
	}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Resources []struct {
			Text        string            `json:"text"`
			LastReplies []json.RawMessage `json:"last_replies"`
		} `json:"resources"`
		Websockets []json.RawMessage `json:"websockets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Resources, 1)
	assert.Equal(t, "Quarterly planning", body.Resources[0].Text)
	assert.NotNil(t, body.Resources[0].LastReplies)
	assert.NotNil(t, body.Websockets)
}

func TestThreadHandler_Create(t *testing.T) {
	f := newFixture(t)
	f.channel("general", "alice")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /companies/{company_id}/threads", NewThreadHandler(f.svc).Create)

	do := func(userID, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/companies/c1/threads", stringsReader(payload))
		req = req.WithContext(execution.WithActor(req.Context(), &execution.Actor{
			ID:        userID,
			Companies: map[string]execution.Role{company: execution.RoleMember},
		}))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do("alice", `{"resource":{"participants":[{"type":"channel","id":"general","workspace_id":"w1"}],"message":{"text":"hi"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created crud.UpdateResponse[NewThread]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, created.Resource.ID, created.Resource.Message.ID)
	assert.Equal(t, "c1", created.Resource.Participants[0].CompanyID)

	assert.Equal(t, http.StatusForbidden, do("bob", `{"resource":{"participants":[{"id":"general","workspace_id":"w1"}],"message":{"text":"hi"}}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("alice", `{"resource":{"participants":[]}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("alice", `{`).Code)
}
