package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/service"
)

type failingResolver struct{}

func (failingResolver) Dependencies(context.Context, string) ([]string, error) {
	return nil, errors.New("github is down")
}

func TestRegisterRepository(t *testing.T) {
	f := newFixture(t, staticResolver{"acme/api": {"acme/lib"}})

	lib, err := f.graphs.RegisterRepository(context.Background(), userID, "acme/lib")
	require.NoError(t, err)
	assert.Equal(t, "acme/lib", lib.Name)
	assert.NotZero(t, lib.ID)

	_, err = f.graphs.RegisterRepository(context.Background(), userID, "acme/api")
	require.NoError(t, err)

	snap, err := f.graphs.Graph(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.StringList{"acme/api", "acme/lib"}, snap.Repos)
	assert.Equal(t, domain.EdgeList{{Up: "acme/lib", Down: "acme/api"}}, snap.Dependencies)
}

func TestRegisterRepository_Duplicate(t *testing.T) {
	f := newFixture(t, staticResolver{})
	f.register(t, userID, "acme/app")

	_, err := f.graphs.RegisterRepository(context.Background(), userID, "acme/app")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegisterRepository_UpstreamLookupFails(t *testing.T) {
	stores := newFixture(t, staticResolver{})
	graphs := service.NewDependencyGraphService(stores.repos, stores.snapshots, failingResolver{})

	_, err := graphs.RegisterRepository(context.Background(), userID, "acme/app")
	assert.ErrorIs(t, err, domain.ErrUpstreamLookupFailed)

	// Nothing was committed.
	repos, err := stores.repos.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestRegisterRepository_UnregisteredUpstreamsAreDropped(t *testing.T) {
	f := newFixture(t, staticResolver{"acme/api": {"acme/not-registered"}})

	_, err := f.graphs.RegisterRepository(context.Background(), userID, "acme/api")
	require.NoError(t, err)

	snap, err := f.graphs.Graph(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, snap.Dependencies)
}

func TestSyncDependencies_RejectsCycle(t *testing.T) {
	manifests := staticResolver{"acme/b": {"acme/a"}}
	f := newFixture(t, manifests)
	f.register(t, userID, "acme/a", "acme/b")

	// A manifest change that closes the loop: a now depends on b.
	manifests["acme/a"] = []string{"acme/b"}

	_, err := f.graphs.SyncDependencies(context.Background(), userID, "acme/a")
	assert.ErrorIs(t, err, domain.ErrGraphCyclic)

	// The stored graph kept its pre-sync shape.
	snap, err := f.graphs.Graph(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.EdgeList{{Up: "acme/a", Down: "acme/b"}}, snap.Dependencies)
}

func TestSyncDependencies_ReplacesInboundEdges(t *testing.T) {
	manifests := staticResolver{"acme/api": {"acme/lib"}}
	f := newFixture(t, manifests)
	f.register(t, userID, "acme/lib", "acme/core", "acme/api")

	manifests["acme/api"] = []string{"acme/core"}

	snap, err := f.graphs.SyncDependencies(context.Background(), userID, "acme/api")
	require.NoError(t, err)
	assert.Equal(t, domain.EdgeList{{Up: "acme/core", Down: "acme/api"}}, snap.Dependencies)
}

func TestSyncDependencies_UnknownRepository(t *testing.T) {
	f := newFixture(t, staticResolver{})

	_, err := f.graphs.SyncDependencies(context.Background(), userID, "acme/ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownRepository)
}

func TestRemoveRepository_PrunesDanglingEdges(t *testing.T) {
	f := newFixture(t, staticResolver{"acme/api": {"acme/lib"}})
	f.register(t, userID, "acme/lib", "acme/api")

	require.NoError(t, f.graphs.RemoveRepository(context.Background(), userID, "acme/lib"))

	snap, err := f.graphs.Graph(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.StringList{"acme/api"}, snap.Repos)
	assert.Empty(t, snap.Dependencies)
}

func TestGraph_EmptyForNewUser(t *testing.T) {
	f := newFixture(t, staticResolver{})

	snap, err := f.graphs.Graph(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, snap.Repos)
	assert.Empty(t, snap.Dependencies)
}
