package messages

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
)

// OpenSearchConfig configures NewOpenSearchIndex.
type OpenSearchConfig struct {
	URL      string
	Username string
	Password string
	Insecure bool
	Index    string
	// Refresh is passed to index and delete requests ("true", "wait_for" or "false").
	Refresh string
}

// OpenSearchIndex implements Index on an OpenSearch index.
type OpenSearchIndex struct {
	client  *opensearch.Client
	index   string
	refresh string
}

// indexDoc is the indexed form of a message.
type indexDoc struct {
	Message
	HasFiles   bool   `json:"has_files"`
	ChannelKey string `json:"channel_key"`
}

var indexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":           map[string]string{"type": "keyword"},
			"thread_id":    map[string]string{"type": "keyword"},
			"company_id":   map[string]string{"type": "keyword"},
			"workspace_id": map[string]string{"type": "keyword"},
			"channel_id":   map[string]string{"type": "keyword"},
			"channel_key":  map[string]string{"type": "keyword"},
			"user_id":      map[string]string{"type": "keyword"},
			"text":         map[string]string{"type": "text"},
			"has_files":    map[string]string{"type": "boolean"},
			"created_at":   map[string]string{"type": "date"},
			"updated_at":   map[string]string{"type": "date"},
			"files":        map[string]interface{}{"type": "object", "enabled": false},
		},
	},
}

// NewOpenSearchIndex connects to OpenSearch and creates the index when it
// does not exist.
func NewOpenSearchIndex(ctx context.Context, cfg OpenSearchConfig) (*OpenSearchIndex, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	refresh := cfg.Refresh
	if refresh == "" {
		refresh = "false"
	}
	x := &OpenSearchIndex{client: client, index: cfg.Index, refresh: refresh}
	if err := x.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return x, nil
}

func (x *OpenSearchIndex) Name() string { return "opensearch" }

// Ping reports whether the cluster answers.
func (x *OpenSearchIndex) Ping(ctx context.Context) error {
	res, err := x.client.Ping(x.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping opensearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch returned %s", res.Status())
	}
	return nil
}

func (x *OpenSearchIndex) ensureIndex(ctx context.Context) error {
	exists, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return err
	}
	res, err := x.client.Indices.Create(
		x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index %s: %s - %s", x.index, res.Status(), string(bodyBytes))
	}
	return nil
}

func docID(companyID, threadID, messageID string) string {
	return companyID + "_" + threadID + "_" + messageID
}

func channelKey(workspaceID, channelID string) string {
	return workspaceID + "/" + channelID
}

func (x *OpenSearchIndex) Upsert(ctx context.Context, msg Message) error {
	doc := indexDoc{
		Message:    msg,
		HasFiles:   len(msg.Files) > 0,
		ChannelKey: channelKey(msg.WorkspaceID, msg.ChannelID),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	res, err := x.client.Index(
		x.index,
		bytes.NewReader(body),
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(docID(msg.CompanyID, msg.ThreadID, msg.ID)),
		x.client.Index.WithRefresh(x.refresh),
	)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index error: %s", res.String())
	}
	return nil
}

func (x *OpenSearchIndex) Remove(ctx context.Context, companyID, threadID, messageID string) error {
	res, err := x.client.Delete(
		x.index,
		docID(companyID, threadID, messageID),
		x.client.Delete.WithContext(ctx),
		x.client.Delete.WithRefresh(x.refresh),
	)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

func (x *OpenSearchIndex) Search(ctx context.Context, q SearchQuery) ([]Message, error) {
	if len(q.Channels) == 0 || q.Limit <= 0 {
		return []Message{}, nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchBody(q)); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source indexDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]Message, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		out = append(out, hit.Source.Message)
	}
	return out, nil
}

// buildSearchBody renders q as an OpenSearch request body. Text matches as
// word prefixes with every term required; everything else is a filter.
func buildSearchBody(q SearchQuery) map[string]interface{} {
	keys := make([]string, 0, len(q.Channels))
	for _, ref := range q.Channels {
		keys = append(keys, channelKey(ref.WorkspaceID, ref.ChannelID))
	}

	filters := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"company_id": q.CompanyID}},
		map[string]interface{}{"terms": map[string]interface{}{"channel_key": keys}},
	}
	if q.Sender != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"user_id": q.Sender}})
	}
	if q.HasFiles != nil {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"has_files": *q.HasFiles}})
	}

	body := map[string]interface{}{
		"size": q.Limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"match_bool_prefix": map[string]interface{}{
							"text": map[string]interface{}{
								"query":    q.Text,
								"operator": "and",
							},
						},
					},
				},
				"filter": filters,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"id": map[string]interface{}{"order": "desc"}},
		},
	}
	if q.After != nil {
		body["search_after"] = searchAfter(*q.After)
	}
	return body
}

func searchAfter(c pagination.Cursor) []interface{} {
	return []interface{}{c.CreatedAt.UnixMilli(), c.ID}
}
