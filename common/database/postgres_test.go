package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutContexts(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context) (context.Context, context.CancelFunc)
		want time.Duration
	}{
		{"query", QueryContext, QueryTimeout},
		{"write", WriteContext, WriteTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			ctx, cancel := tt.fn(context.Background())
			defer cancel()

			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, start.Add(tt.want), deadline, time.Second)
		})
	}
}

func TestMigrate_UnknownDirection(t *testing.T) {
	migrations := fstest.MapFS{
		"sql/001_init.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/001_init.down.sql": {Data: []byte("SELECT 1;")},
	}
	// The direction is checked after the driver connects, so an unreachable
	// database reports a connection error first.
	err := Migrate(migrations, "sql", "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", "sideways")
	require.Error(t, err)
}

func TestMigrate_MissingDir(t *testing.T) {
	err := Migrate(fstest.MapFS{}, "missing", "postgres://localhost/x", Up)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open migrations")
}
