package service

import (
	"net/http"
	"testing"

	"github.com/arxiv-daily/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const favoriteDay = `[
  {"id": "2401.00001", "title_en": "Vision", "category": "cs.CV", "pub_date": "2024-01-02", "embedding": [1, 0]},
  {"id": "2401.00002", "title_en": "Language", "category": "cs.CL", "pub_date": "2024-01-03", "embedding": [0, 1]},
  {"id": "2401.00003", "title_en": "No vector", "category": "cs.LG"}
]`

func TestFavoriteService_CreateAndRename(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	user := env.createUser(t, "alice")

	_, err := env.favorites.Create(ctx, user.ID, "  ")
	assert.Equal(t, http.StatusBadRequest, errors.GetHTTPStatusCode(err))

	reading, err := env.favorites.Create(ctx, user.ID, "Reading")
	require.NoError(t, err)
	_, err = env.favorites.Create(ctx, user.ID, "Reading")
	assert.Equal(t, http.StatusConflict, errors.GetHTTPStatusCode(err))

	later, err := env.favorites.Create(ctx, user.ID, "Later")
	require.NoError(t, err)

	err = env.favorites.Rename(ctx, user.ID, later.ID, "Reading")
	assert.Equal(t, "A folder with this name already exists.", errors.UserMessage(err))
	err = env.favorites.Rename(ctx, user.ID, later.ID, "")
	assert.Equal(t, "Folder name cannot be empty.", errors.UserMessage(err))
	require.NoError(t, env.favorites.Rename(ctx, user.ID, later.ID, "Archive"))
	require.NoError(t, env.favorites.Rename(ctx, user.ID, reading.ID, "Reading"))

	list, err := env.favorites.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Archive", list[0].Name)
	assert.Equal(t, "Reading", list[1].Name)

	filters, err := env.filters.Load(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{reading.ID, later.ID}, filters.SimFavorites)
}

func TestFavoriteService_OtherUsersFolders(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	fav, err := env.favorites.Create(ctx, alice.ID, "Mine")
	require.NoError(t, err)

	_, err = env.favorites.Delete(ctx, bob.ID, fav.ID)
	assert.Equal(t, http.StatusNotFound, errors.GetHTTPStatusCode(err))
	err = env.favorites.Rename(ctx, bob.ID, fav.ID, "Stolen")
	assert.Equal(t, http.StatusNotFound, errors.GetHTTPStatusCode(err))

	added, err := env.favorites.AddPaper(ctx, bob.ID, AddPaperInput{PaperID: "2401.00001", FavoriteIDs: []int64{fav.ID}})
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = env.favorites.Create(ctx, bob.ID, "Mine")
	require.NoError(t, err, "names are unique per user only")
}

func TestFavoriteService_AddPaperRecomputesEmbedding(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	env.writeDay(t, "2024-01-03", favoriteDay)
	user := env.createUser(t, "alice")

	fav, err := env.favorites.Create(ctx, user.ID, "Mixed")
	require.NoError(t, err)

	added, err := env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: "2401.00001", FavoriteIDs: []int64{fav.ID, fav.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: "2401.00001", FavoriteIDs: []int64{fav.ID}})
	require.NoError(t, err)
	assert.Zero(t, added, "already a member")

	for _, id := range []string{"2401.00002", "2401.00003", "unknown"} {
		_, err = env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: id, FavoriteIDs: []int64{fav.ID}})
		require.NoError(t, err)
	}

	got, err := env.favorites.Get(ctx, user.ID, fav.ID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, got.Embedding, 1e-9)

	require.NoError(t, env.favorites.RemovePaper(ctx, user.ID, fav.ID, "2401.00002"))
	got, err = env.favorites.Get(ctx, user.ID, fav.ID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, got.Embedding, 1e-9)

	require.NoError(t, env.favorites.RemovePaper(ctx, user.ID, fav.ID, "2401.00001"))
	got, err = env.favorites.Get(ctx, user.ID, fav.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Embedding, "no member has a vector")
}

func TestFavoriteService_AddPaperWithNewFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	env.writeDay(t, "2024-01-03", favoriteDay)
	user := env.createUser(t, "alice")

	added, err := env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: "2401.00002", NewFavoriteName: "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// the same name again reuses the folder
	added, err = env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: "2401.00001", NewFavoriteName: "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	list, err := env.favorites.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	cards, err := env.favorites.Papers(ctx, user.ID, list[0].ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "2401.00002", cards[0].ID, "newest pub_date first")
	assert.Equal(t, "2401.00001", cards[1].ID)
}

func TestFavoriteService_WithSimilarity(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	env.writeDay(t, "2024-01-03", favoriteDay)
	user := env.createUser(t, "alice")

	vision, err := env.favorites.Create(ctx, user.ID, "vision")
	require.NoError(t, err)
	language, err := env.favorites.Create(ctx, user.ID, "Language")
	require.NoError(t, err)
	_, err = env.favorites.Create(ctx, user.ID, "empty")
	require.NoError(t, err)

	_, err = env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: "2401.00001", FavoriteIDs: []int64{vision.ID}})
	require.NoError(t, err)
	_, err = env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: "2401.00002", FavoriteIDs: []int64{language.ID}})
	require.NoError(t, err)

	items, err := env.favorites.WithSimilarity(ctx, user.ID, "2401.00001")
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "vision", items[0].Name)
	assert.True(t, items[0].HasPaper)
	assert.True(t, items[0].IsTop)
	require.NotNil(t, items[0].Similarity)
	assert.InDelta(t, 1.0, *items[0].Similarity, 1e-9)

	assert.Equal(t, "Language", items[1].Name)
	assert.False(t, items[1].HasPaper)
	assert.False(t, items[1].IsTop)
	require.NotNil(t, items[1].Similarity)
	assert.InDelta(t, 0.0, *items[1].Similarity, 1e-9)

	assert.Equal(t, "empty", items[2].Name)
	assert.Nil(t, items[2].Similarity)

	// without a paper every folder is listed by name ignoring case
	items, err = env.favorites.WithSimilarity(ctx, user.ID, "")
	require.NoError(t, err)
	names := []string{items[0].Name, items[1].Name, items[2].Name}
	assert.Equal(t, []string{"empty", "Language", "vision"}, names)
}

func TestFavoriteService_DeleteKeepsOtherFolders(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	env.writeDay(t, "2024-01-03", favoriteDay)
	user := env.createUser(t, "alice")

	a, err := env.favorites.Create(ctx, user.ID, "a")
	require.NoError(t, err)
	b, err := env.favorites.Create(ctx, user.ID, "b")
	require.NoError(t, err)
	_, err = env.favorites.AddPaper(ctx, user.ID, AddPaperInput{PaperID: "2401.00001", FavoriteIDs: []int64{a.ID, b.ID}})
	require.NoError(t, err)

	deleted, err := env.favorites.Delete(ctx, user.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", deleted.Name)

	saved, err := env.favorites.SavedPaperIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, saved["2401.00001"])

	cards, err := env.favorites.Papers(ctx, user.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}
