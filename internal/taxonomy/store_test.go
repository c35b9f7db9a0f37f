package taxonomy

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "statcube/internal/db"
	"statcube/internal/domain"
)

func TestLookupItemAndResolveCategory(t *testing.T) {
	writeDB, _ := internaldb.OpenTestSQLite(t)
	store := NewStore(writeDB)
	ctx := context.Background()

	require.NoError(t, store.AddCategory(ctx, &domain.ReferenceCategory{
		Key:       "local-authority",
		Name:      "Local authority",
		Hierarchy: []string{"geography", "local-authority"},
	}))
	require.NoError(t, store.AddItem(ctx, &domain.ReferenceItem{
		ItemID:       "W06000001",
		Description:  "Isle of Anglesey",
		CategoryKeys: []string{"local-authority"},
	}))

	item, err := store.LookupItem(ctx, "W06000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"local-authority"}, item.CategoryKeys)
	assert.Equal(t, "Isle of Anglesey", item.Description)

	cat, err := store.ResolveCategory(ctx, "local-authority")
	require.NoError(t, err)
	assert.Equal(t, "Local authority", cat.Name)
	assert.Equal(t, []string{"geography", "local-authority"}, cat.Hierarchy)

	_, err = store.LookupItem(ctx, "X999")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
