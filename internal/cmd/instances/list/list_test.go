package list

import (
	"context"
	"geohost/internal/app"
	"geohost/internal/config"
	"geohost/internal/testhelper"
	"geohost/internal/types"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestRender(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	db := testhelper.NewDB(t)
	catalog := testhelper.Seed(t, db, "http://jenkins.test")
	instance := testhelper.CreateInstance(t, db, catalog, "acme", types.InstanceStatusOnline)

	a, err := app.Wire(config.New(), db)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := Render(ctx, a.Manager, catalog.Admin.ID)
	require.NoError(t, err)
	assert.Contains(t, out, instance.ID.String())
	assert.Contains(t, out, "https://acme.sta.do.kartoza.com")
	assert.Contains(t, out, "ONLINE")
	assert.Contains(t, out, "owner@example.com")

	out, err = Render(ctx, a.Manager, catalog.Stranger.ID)
	require.NoError(t, err)
	assert.NotContains(t, out, "acme")
}
