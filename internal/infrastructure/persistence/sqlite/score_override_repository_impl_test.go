package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

func TestScoreOverrideRepository_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	apps := NewApplicationRepository(db)
	repo := NewScoreOverrideRepository(db)
	ctx := context.Background()

	require.NoError(t, apps.Create(ctx, newApp(t, "APP001", t0)))
	require.NoError(t, apps.Create(ctx, newApp(t, "APP002", t0)))

	prev := 760.0
	first, err := application.NewScoreOverride("OVR1", "APP001", "risk-head", &prev, 705, "manual bureau correction", t0.Add(time.Hour))
	require.NoError(t, err)
	second, err := application.NewScoreOverride("OVR2", "APP001", "risk-head", &first.NewScore, 720.5, "second look", t0.Add(2*time.Hour))
	require.NoError(t, err)
	other, err := application.NewScoreOverride("OVR3", "APP002", "risk-head", nil, 640, "no bureau record", t0.Add(time.Hour))
	require.NoError(t, err)

	// Insert out of order; listing is by time
	require.NoError(t, repo.Append(ctx, second))
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, other))

	list, err := repo.ListByApplication(ctx, mustID(t, "APP001"))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "OVR1", list[0].ID)
	assert.Equal(t, "OVR2", list[1].ID)
	require.NotNil(t, list[1].PreviousScore)
	assert.Equal(t, 705.0, *list[1].PreviousScore)
	assert.True(t, list[0].Timestamp.Equal(t0.Add(time.Hour)))

	latest, ok := application.LatestScore(list)
	assert.True(t, ok)
	assert.Equal(t, 720.5, latest)

	list, err = repo.ListByApplication(ctx, mustID(t, "APP002"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].PreviousScore)

	list, err = repo.ListByApplication(ctx, mustID(t, "APP404"))
	require.NoError(t, err)
	assert.Empty(t, list)
}
