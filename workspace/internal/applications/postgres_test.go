package applications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/pgtest"
)

func TestPostgresStore_Catalog(t *testing.T) {
	store := NewPostgresStore(pgtest.Start(t))
	ctx := context.Background()

	app := Application{
		ID:        "todo",
		CompanyID: "publisher",
		Published: true,
		Identity:  Identity{Code: "todo", Name: "Todo", Categories: []string{"productivity"}},
		API:       API{HooksURL: "https://todo.example.com/hooks", PrivateKey: "secret"},
	}
	require.NoError(t, store.UpsertApplication(ctx, app))

	got, err := store.GetApplication(ctx, "todo")
	require.NoError(t, err)
	assert.Equal(t, "Todo", got.Identity.Name)
	assert.Equal(t, []string{"productivity"}, got.Identity.Categories)
	assert.Equal(t, "secret", got.API.PrivateKey)
	assert.Equal(t, 1, got.Stats.Version)

	app.Identity.Name = "Todo Pro"
	require.NoError(t, store.UpsertApplication(ctx, app))
	got, err = store.GetApplication(ctx, "todo")
	require.NoError(t, err)
	assert.Equal(t, "Todo Pro", got.Identity.Name)
	assert.Equal(t, 2, got.Stats.Version)

	_, err = store.GetApplication(ctx, "missing")
	assert.ErrorIs(t, err, ErrApplicationNotFound)

	all, err := store.ListApplications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPostgresStore_Installations(t *testing.T) {
	store := NewPostgresStore(pgtest.Start(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"calendar", "drive", "todo"} {
		inst, created, err := store.Install(ctx, Installation{
			CompanyID:     "c1",
			ApplicationID: id,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			CreatedBy:     "admin",
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, id, inst.ApplicationID)
	}

	again, created, err := store.Install(ctx, Installation{
		CompanyID: "c1", ApplicationID: "drive", CreatedAt: base.Add(time.Hour), CreatedBy: "other",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "admin", again.CreatedBy)
	assert.True(t, again.CreatedAt.Equal(base.Add(time.Minute)))

	page, err := store.ListInstallations(ctx, "c1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "calendar", page[0].ApplicationID)
	assert.Equal(t, "drive", page[1].ApplicationID)

	last := page[1]
	page, err = store.ListInstallations(ctx, "c1", &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ApplicationID}, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "todo", page[0].ApplicationID)

	removed, err := store.Uninstall(ctx, "c1", "drive")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.Uninstall(ctx, "c1", "drive")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.GetInstallation(ctx, "c1", "drive")
	assert.ErrorIs(t, err, ErrNotInstalled)
}
