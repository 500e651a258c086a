package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/storage/postgres"
	"github.com/jianghu-games/wuxia/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func setupRepos(t *testing.T) (*postgres.AccountRepository, *postgres.SnapshotRepository, string) {
	t.Helper()
	pool := testutil.NewPool(t)
	accounts := postgres.NewAccountRepository(pool)
	username := uniqueName("user")
	require.NoError(t, accounts.Register(context.Background(), username, "password123"))
	return accounts, postgres.NewSnapshotRepository(pool), username
}

func testPlayer(name string) *entity.Player {
	p := entity.NewPlayer(name, name, entity.NewStats(10, 8, 5, 3, 3), entity.Sword)
	p.LearnSkill(entity.Fist)
	p.GainSkillExp(entity.Sword, 30)
	return p
}

func TestAccountRepository_RegisterAndAuthenticate(t *testing.T) {
	accounts, _, username := setupRepos(t)
	ctx := context.Background()

	require.NoError(t, accounts.Authenticate(ctx, username, "password123"))

	err := accounts.Authenticate(ctx, username, "wrong")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)

	err = accounts.Authenticate(ctx, "no_such_user", "password123")
	assert.ErrorIs(t, err, postgres.ErrAccountNotFound)
}

func TestAccountRepository_DuplicateUsername(t *testing.T) {
	accounts, _, username := setupRepos(t)

	err := accounts.Register(context.Background(), username, "other")
	assert.ErrorIs(t, err, postgres.ErrAccountExists)
}

func TestAccountRepository_GetByUsername(t *testing.T) {
	accounts, _, username := setupRepos(t)

	acct, err := accounts.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	assert.Equal(t, username, acct.Username)
	assert.Greater(t, acct.ID, int64(0))
	assert.False(t, acct.CreatedAt.IsZero())
}

func TestSnapshotRepository_CreateAndLoad(t *testing.T) {
	_, snapshots, username := setupRepos(t)
	ctx := context.Background()

	p := testPlayer(uniqueName("hero"))
	require.NoError(t, snapshots.Create(ctx, username, p.ToSnapshot()))

	loaded, err := snapshots.Load(ctx, p.SaveName)
	require.NoError(t, err)

	restored, err := entity.FromSnapshot(loaded)
	require.NoError(t, err)
	assert.Equal(t, p.Power, restored.Power)
	assert.Equal(t, p.SkillLevel(entity.Sword), restored.SkillLevel(entity.Sword))
	assert.Equal(t, p.Stats.HPMax, restored.Stats.HPMax)
}

func TestSnapshotRepository_CreateRequiresAccount(t *testing.T) {
	_, snapshots, _ := setupRepos(t)

	p := testPlayer(uniqueName("hero"))
	err := snapshots.Create(context.Background(), "no_such_account", p.ToSnapshot())
	assert.ErrorIs(t, err, postgres.ErrAccountNotFound)
}

func TestSnapshotRepository_DuplicateName(t *testing.T) {
	_, snapshots, username := setupRepos(t)
	ctx := context.Background()

	p := testPlayer(uniqueName("hero"))
	require.NoError(t, snapshots.Create(ctx, username, p.ToSnapshot()))

	err := snapshots.Create(ctx, username, p.ToSnapshot())
	assert.ErrorIs(t, err, postgres.ErrCharacterExists)
}

func TestSnapshotRepository_SaveOverwrites(t *testing.T) {
	_, snapshots, username := setupRepos(t)
	ctx := context.Background()

	p := testPlayer(uniqueName("hero"))
	require.NoError(t, snapshots.Create(ctx, username, p.ToSnapshot()))

	p.GainSkillExp(entity.Sword, 200)
	require.NoError(t, snapshots.Save(ctx, p.ToSnapshot()))

	loaded, err := snapshots.Load(ctx, p.SaveName)
	require.NoError(t, err)
	assert.Equal(t, p.Power, loaded.Power)
}

func TestSnapshotRepository_SaveUnknownCharacter(t *testing.T) {
	_, snapshots, _ := setupRepos(t)

	p := testPlayer(uniqueName("ghost"))
	err := snapshots.Save(context.Background(), p.ToSnapshot())
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
}

func TestSnapshotRepository_List(t *testing.T) {
	_, snapshots, username := setupRepos(t)
	ctx := context.Background()

	names, err := snapshots.List(ctx, username)
	require.NoError(t, err)
	assert.Empty(t, names)

	a := testPlayer(uniqueName("a_hero"))
	b := testPlayer(uniqueName("b_hero"))
	require.NoError(t, snapshots.Create(ctx, username, a.ToSnapshot()))
	require.NoError(t, snapshots.Create(ctx, username, b.ToSnapshot()))

	names, err = snapshots.List(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, []string{a.SaveName, b.SaveName}, names)
}

func TestSnapshotRepository_LoadUnknown(t *testing.T) {
	_, snapshots, _ := setupRepos(t)

	_, err := snapshots.Load(context.Background(), uniqueName("missing"))
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
}
