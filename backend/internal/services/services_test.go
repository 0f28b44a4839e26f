package services_test

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-base/backend/internal/auth"
	"knowledge-base/backend/internal/graph"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/scrape"
	"knowledge-base/backend/internal/services"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

type fakeScraper struct {
	page *scrape.Page
	err  error
}

func (f *fakeScraper) Validate(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, apperrors.NewURLRejected(raw, "not an absolute URL")
	}
	return u, nil
}

func (f *fakeScraper) Scrape(_ context.Context, raw string) (*scrape.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.page
	p.URL = raw
	return &p, nil
}

type fixture struct {
	m       *services.Manager
	db      *store.DB
	scraper *fakeScraper
	media   string
	owner   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	f := &fixture{db: db, scraper: &fakeScraper{}, media: filepath.Join(dir, "media")}
	f.m = services.NewManager(db, services.SQLiteGraph(), services.Options{
		Issuer:         auth.NewIssuer("test-secret", time.Hour, 24*time.Hour),
		Scraper:        f.scraper,
		MediaRoot:      f.media,
		MaxUploadBytes: 16,
	})

	session, err := f.m.Auth.Register(ctx, services.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	f.owner = session.User.ID
	return f
}

func (f *fixture) note(t *testing.T, title, body string) *models.Note {
	t.Helper()
	n, err := f.m.Notes.Create(context.Background(), f.owner, services.NoteInput{Title: title, Content: body})
	require.NoError(t, err)
	return n
}

func (f *fixture) node(t *testing.T, kind graph.NodeKind, sourceID int64) *graph.Node {
	t.Helper()
	nodes, err := f.m.Graph.ListNodes(context.Background(), f.owner, kind)
	require.NoError(t, err)
	for _, n := range nodes {
		if n.SourceID == sourceID {
			return n
		}
	}
	return nil
}

func (f *fixture) targets(t *testing.T, from *graph.Node, kind graph.LinkKind) []int64 {
	t.Helper()
	links, err := f.m.Graph.LinksByNode(context.Background(), f.owner, from.ID)
	require.NoError(t, err)
	out := []int64{}
	for _, l := range links {
		if l.SourceID == from.ID && l.Kind == kind {
			out = append(out, l.TargetID)
		}
	}
	return out
}

func isType(err error, typ apperrors.ErrorType) bool {
	return apperrors.IsErrorType(err, typ)
}

func TestAuth_RegisterLoginRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Auth.Register(ctx, services.RegisterInput{Username: "alice", Email: "other@example.com", Password: "password123"})
	assert.True(t, isType(err, apperrors.ErrorTypeConflict))

	_, err = f.m.Auth.Register(ctx, services.RegisterInput{Username: "bob", Email: "not-an-email", Password: "password123"})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	_, err = f.m.Auth.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	session, err := f.m.Auth.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, f.owner, session.User.ID)

	userID, err := f.m.Auth.Authenticate(session.Tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, f.owner, userID)

	_, err = f.m.Auth.Authenticate(session.Tokens.Refresh)
	assert.True(t, isType(err, apperrors.ErrorTypeAuth))

	pair, err := f.m.Auth.Refresh(ctx, session.Tokens.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)

	require.NoError(t, f.m.Auth.ChangePassword(ctx, f.owner, "password123", "new-password"))
	_, err = f.m.Auth.Login(ctx, "alice@example.com", "new-password")
	assert.NoError(t, err)
}

func TestNotes_RelatedIsSymmetric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.note(t, "B", "target")
	a := f.note(t, "A", fmt.Sprintf("see [B](/notes/%d)", b.ID))
	require.Len(t, a.RelatedNotes, 1)
	assert.Equal(t, b.ID, a.RelatedNotes[0].ID)

	gotB, err := f.m.Notes.Get(ctx, f.owner, b.ID)
	require.NoError(t, err)
	require.Len(t, gotB.RelatedNotes, 1)
	assert.Equal(t, a.ID, gotB.RelatedNotes[0].ID)

	aNode, bNode := f.node(t, graph.KindNote, a.ID), f.node(t, graph.KindNote, b.ID)
	assert.Equal(t, []int64{bNode.ID}, f.targets(t, aNode, graph.LinkRelated))
	assert.Equal(t, []int64{aNode.ID}, f.targets(t, bNode, graph.LinkRelated))

	plain := "no links anymore"
	_, err = f.m.Notes.Update(ctx, f.owner, a.ID, services.NoteUpdate{Content: &plain})
	require.NoError(t, err)

	gotB, err = f.m.Notes.Get(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Empty(t, gotB.RelatedNotes)
	assert.Empty(t, f.targets(t, aNode, graph.LinkRelated))
	assert.Empty(t, f.targets(t, bNode, graph.LinkRelated))
}

func TestNotes_ReferenceTakesPrecedence(t *testing.T) {
	f := newFixture(t)

	b := f.note(t, "B", "target")
	a := f.note(t, "A", fmt.Sprintf("[[note:%d]] and [B](/notes/%d)", b.ID, b.ID))

	aNode, bNode := f.node(t, graph.KindNote, a.ID), f.node(t, graph.KindNote, b.ID)
	assert.Equal(t, []int64{bNode.ID}, f.targets(t, aNode, graph.LinkReference))
	assert.Empty(t, f.targets(t, aNode, graph.LinkRelated))
}

func TestNotes_DeleteRemovesNodeAndResyncsPartner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.note(t, "B", "target")
	a := f.note(t, "A", fmt.Sprintf("[B](/notes/%d)", b.ID))

	require.NoError(t, f.m.Notes.Delete(ctx, f.owner, a.ID))
	assert.Nil(t, f.node(t, graph.KindNote, a.ID))

	bNode := f.node(t, graph.KindNote, b.ID)
	require.NotNil(t, bNode)
	assert.Empty(t, f.targets(t, bNode, graph.LinkRelated))

	_, err := f.m.Notes.Get(ctx, f.owner, a.ID)
	assert.True(t, isType(err, apperrors.ErrorTypeNotFound))
}

func TestNotes_DanglingReferenceDroppedOnResave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.note(t, "B", "target")
	a := f.note(t, "A", fmt.Sprintf("see [[note:%d]]", b.ID))
	aNode := f.node(t, graph.KindNote, a.ID)
	require.Len(t, f.targets(t, aNode, graph.LinkReference), 1)

	require.NoError(t, f.m.Notes.Delete(ctx, f.owner, b.ID))
	assert.Empty(t, f.targets(t, aNode, graph.LinkReference))

	// The marker is still in the text but no longer resolves
	title := "A again"
	_, err := f.m.Notes.Update(ctx, f.owner, a.ID, services.NoteUpdate{Title: &title})
	require.NoError(t, err)
	assert.Empty(t, f.targets(t, aNode, graph.LinkReference))
	assert.Empty(t, f.targets(t, aNode, graph.LinkRelated))
}

func TestNotes_SlugCollisionGetsSuffix(t *testing.T) {
	f := newFixture(t)

	first := f.note(t, "Hello World", "")
	second := f.note(t, "Hello World", "")
	third := f.note(t, "hello   world!", "")
	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "hello-world-1", second.Slug)
	assert.Equal(t, "hello-world-2", third.Slug)
}

func TestNotes_ClientSlugMustBeURLSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, slug := range []string{"a b/c", "Hello", "../etc", "日本語", "-edge-"} {
		_, err := f.m.Notes.Create(ctx, f.owner, services.NoteInput{Title: "X", Slug: slug})
		require.Error(t, err, slug)
		assert.True(t, isType(err, apperrors.ErrorTypeValidation), slug)
	}

	n, err := f.m.Notes.Create(ctx, f.owner, services.NoteInput{Title: "X", Slug: "my-custom_slug-2"})
	require.NoError(t, err)
	assert.Equal(t, "my-custom_slug-2", n.Slug)

	_, err = f.m.Notes.Create(ctx, f.owner, services.NoteInput{Title: "Y", Slug: "my-custom_slug-2"})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))
}

func TestNotes_CategoryMustBelongToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := int64(999)
	_, err := f.m.Notes.Create(ctx, f.owner, services.NoteInput{Title: "X", CategoryID: &missing})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))
}

func TestNotes_ArchivePinAndTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag, err := f.m.Tags.Create(ctx, f.owner, services.TagInput{Name: "go"})
	require.NoError(t, err)
	n := f.note(t, "Draft", "body")

	n, err = f.m.Notes.AddTags(ctx, f.owner, n.ID, []int64{tag.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{tag.ID}, n.TagIDs())

	tagNode := f.node(t, graph.KindTag, tag.ID)
	assert.Equal(t, int64(1), tagNode.Meta.(graph.TagMeta).UsageCount)
	assert.Equal(t, []int64{tagNode.ID}, f.targets(t, f.node(t, graph.KindNote, n.ID), graph.LinkTagged))

	n, err = f.m.Notes.TogglePin(ctx, f.owner, n.ID)
	require.NoError(t, err)
	assert.True(t, n.IsPinned)

	n, err = f.m.Notes.Archive(ctx, f.owner, n.ID)
	require.NoError(t, err)
	assert.True(t, n.IsArchived)
	assert.NotNil(t, n.ArchivedAt)
	assert.True(t, f.node(t, graph.KindNote, n.ID).Meta.(graph.NoteMeta).Archived)

	n, err = f.m.Notes.ClearTags(ctx, f.owner, n.ID)
	require.NoError(t, err)
	assert.Empty(t, n.Tags)
	assert.Equal(t, int64(0), f.node(t, graph.KindTag, tag.ID).Meta.(graph.TagMeta).UsageCount)
}

func TestCategories_MoveIntoDescendantRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Root"})
	require.NoError(t, err)
	child, err := f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Child", ParentID: &root.ID})
	require.NoError(t, err)
	assert.Equal(t, "Root/Child", child.Path)

	_, err = f.m.Categories.Update(ctx, f.owner, root.ID, services.CategoryUpdate{ParentSet: true, ParentID: &child.ID})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	_, err = f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Bad", Color: "blue"})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	tree, err := f.m.Categories.Tree(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, child.ID, tree[0].Children[0].ID)
}

func TestCategories_RenameUpdatesPathsAndNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Root"})
	require.NoError(t, err)
	child, err := f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Child", ParentID: &root.ID})
	require.NoError(t, err)
	n, err := f.m.Notes.Create(ctx, f.owner, services.NoteInput{Title: "Filed", CategoryID: &root.ID})
	require.NoError(t, err)

	name := "Base"
	_, err = f.m.Categories.Update(ctx, f.owner, root.ID, services.CategoryUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "Base/Child", f.node(t, graph.KindCategory, child.ID).Meta.(graph.CategoryMeta).Path)
	meta := f.node(t, graph.KindNote, n.ID).Meta.(graph.NoteMeta)
	require.NotNil(t, meta.Category)
	assert.Equal(t, "Base", *meta.Category)
}

func TestCategories_DeleteCascadesSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Root"})
	require.NoError(t, err)
	child, err := f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Child", ParentID: &root.ID})
	require.NoError(t, err)
	n, err := f.m.Notes.Create(ctx, f.owner, services.NoteInput{Title: "Filed", CategoryID: &child.ID})
	require.NoError(t, err)
	noteNode := f.node(t, graph.KindNote, n.ID)
	require.Len(t, f.targets(t, noteNode, graph.LinkParent), 1)

	require.NoError(t, f.m.Categories.Delete(ctx, f.owner, root.ID))

	all, err := f.m.Categories.List(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Nil(t, f.node(t, graph.KindCategory, root.ID))
	assert.Nil(t, f.node(t, graph.KindCategory, child.ID))

	got, err := f.m.Notes.Get(ctx, f.owner, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.Empty(t, f.targets(t, noteNode, graph.LinkParent))
	assert.Nil(t, f.node(t, graph.KindNote, n.ID).Meta.(graph.NoteMeta).Category)
}

func TestTags_DeleteResyncsNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tags, err := f.m.Tags.BulkCreate(ctx, f.owner, []string{"go", " go ", "sql", ""})
	require.NoError(t, err)
	require.Len(t, tags, 2)

	again, err := f.m.Tags.BulkCreate(ctx, f.owner, []string{"go", "rust"})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "rust", again[0].Name)

	_, err = f.m.Tags.Create(ctx, f.owner, services.TagInput{Name: "go"})
	assert.True(t, isType(err, apperrors.ErrorTypeConflict))

	n, err := f.m.Notes.Create(ctx, f.owner, services.NoteInput{Title: "Tagged", TagIDs: []int64{tags[0].ID, tags[1].ID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "sql"}, f.node(t, graph.KindNote, n.ID).Meta.(graph.NoteMeta).Tags)

	require.NoError(t, f.m.Tags.Delete(ctx, f.owner, tags[0].ID))
	assert.Nil(t, f.node(t, graph.KindTag, tags[0].ID))
	assert.Equal(t, []string{"sql"}, f.node(t, graph.KindNote, n.ID).Meta.(graph.NoteMeta).Tags)

	err = f.m.Tags.Delete(ctx, f.owner, tags[0].ID)
	assert.True(t, isType(err, apperrors.ErrorTypeNotFound))
}

func TestCollections_ScrapeFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.scraper.err = apperrors.NewScrapeFailed("https://example.com/post", nil)
	c, err := f.m.Collections.Create(ctx, f.owner, services.CollectionInput{URL: "https://example.com/post"})
	require.NoError(t, err)
	assert.False(t, c.IsProcessed)
	assert.Equal(t, "example.com", c.Domain)

	node := f.node(t, graph.KindCollection, c.ID)
	require.NotNil(t, node)
	assert.Equal(t, "https://example.com/post", node.Title)

	f.scraper.err = nil
	f.scraper.page = &scrape.Page{Domain: "example.com", Title: "A Post", Content: "one two three"}
	c, err = f.m.Collections.Refresh(ctx, f.owner, c.ID)
	require.NoError(t, err)
	assert.True(t, c.IsProcessed)
	assert.Equal(t, 3, c.WordCount)
	assert.Equal(t, "A Post", f.node(t, graph.KindCollection, c.ID).Title)

	_, err = f.m.Collections.Create(ctx, f.owner, services.CollectionInput{URL: ""})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	require.NoError(t, f.m.Collections.Delete(ctx, f.owner, c.ID))
	assert.Nil(t, f.node(t, graph.KindCollection, c.ID))
}

func TestCollections_UserTitleWins(t *testing.T) {
	f := newFixture(t)

	f.scraper.page = &scrape.Page{Domain: "example.com", Title: "Scraped", Description: "scraped desc"}
	c, err := f.m.Collections.Create(context.Background(), f.owner, services.CollectionInput{URL: "https://example.com", Title: "Mine"})
	require.NoError(t, err)
	assert.Equal(t, "Mine", c.Title)
	assert.Equal(t, "scraped desc", c.Description)
}

func TestAttachments_UploadAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.note(t, "Host", "")
	a, err := f.m.Attachments.Upload(ctx, f.owner, services.UploadInput{
		NoteID:   &n.ID,
		Name:     "notes.txt",
		MimeType: "text/plain; charset=utf-8",
		Body:     strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.FileTypeDocument, a.FileType)
	assert.Equal(t, int64(5), a.Size)
	assert.True(t, strings.HasPrefix(a.Path, fmt.Sprintf("attachments/%d/", f.owner)))
	assert.True(t, strings.HasSuffix(a.Path, ".txt"))

	data, err := os.ReadFile(f.m.Attachments.FilePath(a.Path))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	list, err := f.m.Attachments.List(ctx, f.owner, store.AttachmentFilter{NoteID: &n.ID}, models.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Count)

	_, err = f.m.Attachments.Upload(ctx, f.owner, services.UploadInput{
		Name: "big.bin",
		Body: strings.NewReader(strings.Repeat("x", 32)),
	})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	missing := int64(999)
	_, err = f.m.Attachments.Upload(ctx, f.owner, services.UploadInput{NoteID: &missing, Name: "a.png", Body: strings.NewReader("x")})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	removed, err := f.m.Attachments.BulkDelete(ctx, f.owner, []int64{a.ID, 12345})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(f.m.Attachments.FilePath(a.Path))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Join(f.media, "attachments", fmt.Sprint(f.owner)))
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = f.m.Attachments.Delete(ctx, f.owner, a.ID)
	assert.True(t, isType(err, apperrors.ErrorTypeNotFound))
}

func TestFileTypeFor(t *testing.T) {
	tests := []struct {
		mime string
		want models.FileType
	}{
		{"image/png", models.FileTypeImage},
		{"video/mp4", models.FileTypeVideo},
		{"audio/mpeg", models.FileTypeAudio},
		{"application/pdf", models.FileTypeDocument},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", models.FileTypeDocument},
		{"application/zip", models.FileTypeOther},
		{"", models.FileTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, services.FileTypeFor(tt.mime))
		})
	}
}

func TestGraph_ManualLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.node(t, graph.KindNote, f.note(t, "A", "").ID)
	b := f.node(t, graph.KindNote, f.note(t, "B", "").ID)

	link, err := f.m.Graph.CreateLink(ctx, f.owner, services.LinkRequest{SourceID: a.ID, TargetID: b.ID, Kind: graph.LinkSimilar})
	require.NoError(t, err)
	assert.Equal(t, graph.LinkSimilar, link.Kind)

	_, err = f.m.Graph.CreateLink(ctx, f.owner, services.LinkRequest{SourceID: a.ID, TargetID: b.ID})
	assert.True(t, isType(err, apperrors.ErrorTypeConflict))

	_, err = f.m.Graph.CreateLink(ctx, f.owner, services.LinkRequest{SourceID: a.ID, TargetID: 9999})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	_, err = f.m.Graph.CreateLink(ctx, f.owner, services.LinkRequest{SourceID: a.ID, TargetID: b.ID, Kind: "friend"})
	assert.True(t, isType(err, apperrors.ErrorTypeValidation))

	view, err := f.m.Graph.Related(ctx, f.owner, a.ID)
	require.NoError(t, err)
	assert.Len(t, view.Nodes, 2)
	assert.Len(t, view.Links, 1)

	require.NoError(t, f.m.Graph.DeleteLink(ctx, f.owner, link.ID))
	err = f.m.Graph.DeleteLink(ctx, f.owner, link.ID)
	assert.True(t, isType(err, apperrors.ErrorTypeNotFound))
}

func TestGraph_RebuildIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat, err := f.m.Categories.Create(ctx, f.owner, services.CategoryInput{Name: "Work"})
	require.NoError(t, err)
	tag, err := f.m.Tags.Create(ctx, f.owner, services.TagInput{Name: "go"})
	require.NoError(t, err)
	b := f.note(t, "B", "")
	_, err = f.m.Notes.Create(ctx, f.owner, services.NoteInput{
		Title:      "A",
		Content:    fmt.Sprintf("[[note:%d]]", b.ID),
		CategoryID: &cat.ID,
		TagIDs:     []int64{tag.ID},
	})
	require.NoError(t, err)

	before, err := f.m.Graph.Full(ctx, f.owner)
	require.NoError(t, err)

	res, err := f.m.Graph.Rebuild(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Categories)
	assert.Equal(t, 1, res.Tags)
	assert.Equal(t, 2, res.Notes)
	assert.Equal(t, 0, res.Collections)

	after, err := f.m.Graph.Full(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, before.Nodes, after.Nodes)
	assert.Equal(t, before.Links, after.Links)

	assert.Zero(t, res.Pruned)

	all, err := f.m.Graph.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGraph_RebuildRemovesOrphanNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag, err := f.m.Tags.Create(ctx, f.owner, services.TagInput{Name: "go"})
	require.NoError(t, err)
	n := f.note(t, "A", "")

	// Nodes left behind by writes that bypassed the services
	syncer := graph.NewSyncer(f.db.Reader().Graph())
	_, err = syncer.SyncTag(ctx, graph.TagSnapshot{OwnerID: f.owner, ID: tag.ID + 100, Name: "ghost"})
	require.NoError(t, err)
	_, err = syncer.SyncNote(ctx, graph.NoteSnapshot{OwnerID: f.owner, ID: n.ID + 100, Title: "Gone", TagIDs: []int64{tag.ID}, TagNames: []string{"go"}})
	require.NoError(t, err)

	res, err := f.m.Graph.Rebuild(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pruned)
	assert.Equal(t, 1, res.Tags)
	assert.Equal(t, 1, res.Notes)

	assert.Nil(t, f.node(t, graph.KindTag, tag.ID+100))
	assert.Nil(t, f.node(t, graph.KindNote, n.ID+100))
	assert.NotNil(t, f.node(t, graph.KindTag, tag.ID))
	assert.NotNil(t, f.node(t, graph.KindNote, n.ID))

	links, err := f.m.Graph.Links(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, links)
}
