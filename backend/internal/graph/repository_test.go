package graph

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "knowledge-base/backend/pkg/errors"
)

// The Neo4j tests share one container started on first use. They skip
// under -short or when Docker is unavailable.

var (
	neo4jOnce     sync.Once
	neo4jPool     *dockertest.Pool
	neo4jResource *dockertest.Resource
	neo4jDriver   neo4j.DriverWithContext
	neo4jErr      error
	ownerSeq      int64
	ownerSeqMu    sync.Mutex
)

func TestMain(m *testing.M) {
	code := m.Run()
	if neo4jDriver != nil {
		_ = neo4jDriver.Close(context.Background())
	}
	if neo4jPool != nil && neo4jResource != nil {
		if err := neo4jPool.Purge(neo4jResource); err != nil {
			fmt.Printf("Could not purge neo4j container: %s\n", err)
		}
	}
	os.Exit(code)
}

func startNeo4j() {
	pool, err := dockertest.NewPool("")
	if err != nil {
		neo4jErr = err
		return
	}
	if err := pool.Client.Ping(); err != nil {
		neo4jErr = err
		return
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "neo4j",
		Tag:        "5",
		Env:        []string{"NEO4J_AUTH=neo4j/password123"},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		neo4jErr = err
		return
	}
	neo4jPool, neo4jResource = pool, resource

	pool.MaxWait = 120 * time.Second
	uri := "bolt://localhost:" + resource.GetPort("7687/tcp")
	neo4jErr = pool.Retry(func() error {
		driver, err := Connect(context.Background(), uri, "neo4j", "password123")
		if err != nil {
			return err
		}
		neo4jDriver = driver
		return nil
	})
}

func testRepository(t *testing.T) (*Repository, int64) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	neo4jOnce.Do(startNeo4j)
	if neo4jErr != nil {
		t.Skipf("Neo4j unavailable: %v", neo4jErr)
	}

	repo := NewRepository(neo4jDriver)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	// Each test gets its own owner so tests never see each other's data.
	ownerSeqMu.Lock()
	ownerSeq++
	owner := time.Now().UnixNano() + ownerSeq
	ownerSeqMu.Unlock()

	t.Cleanup(func() {
		ctx := context.Background()
		session := neo4jDriver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (n:GraphNode {owner_id: $owner}) DETACH DELETE n", map[string]interface{}{"owner": owner})
	})
	return repo, owner
}

func noteInput(owner, noteID int64, title string) NodeInput {
	return NodeInput{OwnerID: owner, Title: title, Meta: NoteMeta{NoteID: noteID, Tags: []string{}}}
}

func TestRepository_UpsertNodeKeyedBySource(t *testing.T) {
	repo, owner := testRepository(t)
	ctx := context.Background()

	first, err := repo.UpsertNode(ctx, noteInput(owner, 1, "First"))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, KindNote, first.Kind)
	assert.Equal(t, "First", first.Label)

	again, err := repo.UpsertNode(ctx, noteInput(owner, 1, "Renamed"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Renamed", again.Title)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)

	other, err := repo.UpsertNode(ctx, noteInput(owner, 2, "Second"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	nodes, err := repo.ListNodes(ctx, owner, KindNote)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	found, err := repo.FindNodes(ctx, owner, KindNote, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	missing, err := repo.FindNode(ctx, owner, KindTag, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	meta, ok := again.Meta.(NoteMeta)
	require.True(t, ok)
	assert.Equal(t, int64(1), meta.NoteID)
}

func TestRepository_GetNodeOtherOwner(t *testing.T) {
	repo, owner := testRepository(t)
	ctx := context.Background()

	node, err := repo.UpsertNode(ctx, noteInput(owner, 1, "Private"))
	require.NoError(t, err)

	_, err = repo.GetNode(ctx, owner+1, node.ID)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestRepository_Links(t *testing.T) {
	repo, owner := testRepository(t)
	ctx := context.Background()

	a, err := repo.UpsertNode(ctx, noteInput(owner, 1, "A"))
	require.NoError(t, err)
	b, err := repo.UpsertNode(ctx, noteInput(owner, 2, "B"))
	require.NoError(t, err)

	link, err := repo.CreateLink(ctx, LinkInput{OwnerID: owner, SourceID: a.ID, TargetID: b.ID, Kind: LinkRelated, Description: "manual"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, link.SourceID)
	assert.Equal(t, b.ID, link.TargetID)
	assert.Equal(t, "manual", link.Description)

	_, err = repo.CreateLink(ctx, LinkInput{OwnerID: owner, SourceID: a.ID, TargetID: b.ID, Kind: LinkSimilar})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConflict))

	_, err = repo.CreateLink(ctx, LinkInput{OwnerID: owner, SourceID: a.ID, TargetID: b.ID + 1000, Kind: LinkRelated})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	updated, err := repo.UpsertLink(ctx, LinkInput{OwnerID: owner, SourceID: a.ID, TargetID: b.ID, Kind: LinkReference})
	require.NoError(t, err)
	assert.Equal(t, link.ID, updated.ID)
	assert.Equal(t, LinkReference, updated.Kind)

	out, err := repo.OutgoingLinks(ctx, owner, a.ID, LinkReference)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	got, err := repo.GetLink(ctx, owner, link.ID)
	require.NoError(t, err)
	assert.Equal(t, LinkReference, got.Kind)

	ids, err := repo.DeleteNodes(ctx, owner, KindNote, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids)

	links, err := repo.ListLinks(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestRepository_DeleteLinks(t *testing.T) {
	repo, owner := testRepository(t)
	ctx := context.Background()

	a, err := repo.UpsertNode(ctx, noteInput(owner, 1, "A"))
	require.NoError(t, err)
	b, err := repo.UpsertNode(ctx, noteInput(owner, 2, "B"))
	require.NoError(t, err)
	c, err := repo.UpsertNode(ctx, noteInput(owner, 3, "C"))
	require.NoError(t, err)

	ab, err := repo.UpsertLink(ctx, LinkInput{OwnerID: owner, SourceID: a.ID, TargetID: b.ID, Kind: LinkRelated})
	require.NoError(t, err)
	_, err = repo.UpsertLink(ctx, LinkInput{OwnerID: owner, SourceID: c.ID, TargetID: a.ID, Kind: LinkReference})
	require.NoError(t, err)
	_, err = repo.UpsertLink(ctx, LinkInput{OwnerID: owner, SourceID: b.ID, TargetID: c.ID, Kind: LinkSimilar})
	require.NoError(t, err)

	touching, err := repo.LinksTouching(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Len(t, touching, 2)

	removed, err := repo.DeleteLinks(ctx, owner+1, []int64{ab.ID})
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = repo.DeleteLinksTouching(ctx, owner, []int64{a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	links, err := repo.ListLinks(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}
