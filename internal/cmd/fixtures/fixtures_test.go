package fixtures

import (
	"context"
	"geohost/internal/database"
	"geohost/internal/testhelper"
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestLoad(t *testing.T) {
	db := testhelper.NewDB(t)
	ctx := context.Background()

	summary, err := Load(ctx, db, "testdata/fixtures.yaml")
	require.NoError(t, err)
	assert.Equal(t, "loaded 1 regions, 1 clusters, 1 products, 1 packages, 1 users, 2 activity types", summary)

	// loading twice keeps a single copy of every entry
	_, err = Load(ctx, db, "testdata/fixtures.yaml")
	require.NoError(t, err)

	var mappings int64
	require.NoError(t, db.Model(&types.ActivityTypeMapping{}).Count(&mappings).Error)
	assert.EqualValues(t, 7, mappings)

	user, err := database.NewUserRepository(db).FindByID(ctx, uuid.MustParse("1f2e3d4c-5b6a-4798-8a9b-0c1d2e3f4a06"))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", user.Email)
	assert.True(t, user.IsAdmin)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), testhelper.NewDB(t), "testdata/nope.yaml")
	assert.ErrorContains(t, err, "failed to open fixtures file")
}
