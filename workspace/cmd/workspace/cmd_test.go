package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/workspace/internal/auth"
	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/crud"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/messages"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
)

const testConfig = `
security:
  master_secret: "0123456789abcdef0123456789abcdef"
auth:
  jwt_secret: "cli-test-secret"
  issuer: "cli-test"
logging:
  level: error
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{"serve": false, "migrate": false, "token": false, "catalog": false, "seed": false}
	for _, cmd := range rootCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "command %q not registered", name)
	}
}

func TestTokenIssue(t *testing.T) {
	cfg := writeFile(t, "config.yaml", testConfig)

	out, err := execute(t, "--config", cfg, "token", "issue", "--user", "alice", "--companies", "acme=admin,globex=member")
	require.NoError(t, err)

	claims, err := auth.NewValidator("cli-test-secret", "cli-test").Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, map[string]string{"acme": "admin", "globex": "member"}, claims.Companies)
}

func TestTokenIssue_RejectsUnknownRole(t *testing.T) {
	cfg := writeFile(t, "config.yaml", testConfig)
	_, err := execute(t, "--config", cfg, "token", "issue", "--user", "alice", "--companies", "acme=owner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role must be member or admin")
}

func TestCatalogValidate(t *testing.T) {
	valid := writeFile(t, "catalog.yaml", `
applications:
  - id: todo
    company_id: publisher
    published: true
    identity: {name: Todo}
  - id: draft
    company_id: publisher
    identity: {name: Draft}
`)
	out, err := execute(t, "catalog", "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "2 applications")
	assert.Contains(t, out, "todo")
	assert.Contains(t, out, "unpublished")

	invalid := writeFile(t, "bad.yaml", `
applications:
  - id: todo
    identity: {name: Todo}
`)
	_, err = execute(t, "catalog", "validate", invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company_id is required")
}

func TestMigrate_RejectsUnknownDirection(t *testing.T) {
	_, err := execute(t, "migrate", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown direction")
}

func TestSeedWorkspace(t *testing.T) {
	ctx := context.Background()
	codec := pagination.NewCodec([]byte("seed-key"), 50, 500)
	chanSvc := channels.NewService(channels.NewMemoryRepository(), codec, realtime.NopNotifier{}, nil)
	msgSvc := messages.NewService(messages.NewMemoryStore(), messages.NewMemoryIndex(), chanSvc, codec, realtime.NopNotifier{}, nil)

	opts := seedOptions{CompanyID: "acme", WorkspaceID: "main", Users: 3, Channels: 2, Threads: 6, Replies: 3}
	summary, err := seedWorkspace(ctx, opts, chanSvc, msgSvc, gofakeit.New(42))
	require.NoError(t, err)

	assert.Len(t, summary.Users, 3)
	assert.Equal(t, 2, summary.Channels)
	assert.Equal(t, 6, summary.Threads)
	assert.GreaterOrEqual(t, summary.Messages, 6)
	assert.LessOrEqual(t, summary.Messages, 6*4)

	ec, err := execution.Build(execution.RequestInfo{
		CompanyID: "acme",
		Actor:     &execution.Actor{ID: summary.Users[2], Companies: map[string]execution.Role{"acme": execution.RoleMember}},
	})
	require.NoError(t, err)
	list, err := chanSvc.List(ctx, pagination.Query{}, crud.Filters{channels.FilterWorkspace: "main"}, ec)
	require.NoError(t, err)
	assert.Len(t, list.Entities, 2)
	for _, ch := range list.Entities {
		assert.True(t, ch.HasMember(summary.Users[2]))
	}

	_, err = seedWorkspace(ctx, seedOptions{CompanyID: "acme", WorkspaceID: "main"}, chanSvc, msgSvc, gofakeit.New(1))
	assert.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com", "*.teamspace.dev"})
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://eu.teamspace.dev", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/api/v1/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.want, check(r), tc.origin)
	}
}
