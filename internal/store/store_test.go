package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestVectorLiteral(t *testing.T) {
	tests := []struct {
		name string
		vec  vision.Embedding
		want string
	}{
		{"empty", vision.Embedding{}, "[]"},
		{"single", vision.Embedding{1}, "[1]"},
		{"mixed", vision.Embedding{0.5, -0.25, 0}, "[0.5,-0.25,0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vecToString(tt.vec)
			assert.Equal(t, tt.want, got)

			back, err := parseVector(got)
			require.NoError(t, err)
			assert.Equal(t, tt.vec, back)
		})
	}
}

func TestParseVectorRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "1,2", "[1,x]"} {
		_, err := parseVector(in)
		assert.Error(t, err, "input %q", in)
	}
}

func axis(i int) vision.Embedding {
	v := make(vision.Embedding, vision.EmbeddingDim)
	v[i] = 1
	return v
}

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// testcontainers panics when the docker socket is missing
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("facewatch_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	require.NoError(t, err, "start postgres container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, connStr)
	require.NoError(t, err, "connect to store")
	defer s.Close(ctx)

	set := reference.NewSet()
	set.Put("bob", axis(1))
	set.Put("alice", axis(0))

	n, err := s.SaveReferences(ctx, set, "/refs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Saving again is an upsert.
	_, err = s.SaveReferences(ctx, set, "/refs")
	require.NoError(t, err)

	loaded, err := s.LoadReferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, loaded.Labels())
	got, ok := loaded.Get("alice")
	require.True(t, ok)
	assert.Equal(t, axis(0), got)

	label, dist, err := s.FindClosest(ctx, axis(0), 0.6)
	require.NoError(t, err)
	assert.Equal(t, "alice", label)
	assert.InDelta(t, 0, dist, 1e-6)

	// Orthogonal unit vectors are sqrt(2) apart.
	label, dist, err = s.FindClosest(ctx, axis(5), 0.6)
	require.NoError(t, err)
	assert.Equal(t, vision.Unknown, label)
	assert.InDelta(t, math.Sqrt2, dist, 1e-6)

	require.NoError(t, s.RenameReference(ctx, "bob", "robert"))
	assert.ErrorIs(t, s.RenameReference(ctx, "bob", "x"), ErrNotFound)

	require.NoError(t, s.DeleteReference(ctx, "alice"))
	assert.ErrorIs(t, s.DeleteReference(ctx, "alice"), ErrNotFound)

	refs, err := s.ListReferences(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "robert", refs[0].Label)
	assert.Equal(t, "/refs", refs[0].Source)
	assert.False(t, refs[0].EnrolledAt.IsZero())

	bad := reference.NewSet()
	bad.Put("short", vision.Embedding{1, 2})
	_, err = s.SaveReferences(ctx, bad, "")
	assert.Error(t, err)

	require.NoError(t, s.Reset(ctx))
	_, err = s.ListReferences(ctx)
	assert.Error(t, err, "table should be gone after reset")
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
