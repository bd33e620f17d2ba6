/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bunrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrepo"
	"github.com/tomoncle/bunrepo/config"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/types"
	"github.com/uptrace/bun"
)

type Note struct {
	bun.BaseModel `bun:"table:notes" json:"-"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Text string `bun:"text,notnull" json:"text"`
}

func memoryConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Pagination.PageLimit = 2
	conn := &cfg.Database.ConnectionConfig
	conn.DBName = "file:" + t.Name() + "?mode=memory&cache=shared"
	conn.MaxOpenConns = 1
	conn.HealthCheckInterval = 0
	return cfg
}

func TestNewRepositoryBeforeOpen(t *testing.T) {
	_, err := bunrepo.NewRepository[Note, int64](nil)
	assert.EqualError(t, err, "database not initialized")

	_, err = bunrepo.Open(context.Background(), nil)
	assert.Error(t, err)
}

func TestOpenRejectsInvalidPageLimit(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Pagination.PageLimit = 0
	_, err := bunrepo.Open(context.Background(), cfg)
	assert.ErrorIs(t, err, types.ErrInvalidPageLimit)
	assert.Nil(t, database.GetDB())
}

func TestOpenAndUseRepository(t *testing.T) {
	ctx := context.Background()
	database.RegisterModel((*Note)(nil), 0)

	pageConfig, err := bunrepo.Open(ctx, memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunrepo.Close() })
	assert.Equal(t, 2, pageConfig.PageLimit())

	notes, err := bunrepo.NewRepository[Note, int64](pageConfig)
	require.NoError(t, err)
	assert.Same(t, pageConfig, notes.PaginationConfig())

	for _, text := range []string{"a", "b", "c"} {
		_, err := notes.Save(ctx, &Note{Text: text})
		require.NoError(t, err)
	}
	page, err := notes.ListPage(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].Text)

	require.NoError(t, bunrepo.Close())
	assert.Nil(t, database.GetDB())
}

func TestRepositorySurvivesReconnect(t *testing.T) {
	ctx := context.Background()
	database.RegisterModel((*Note)(nil), 0)

	pageConfig, err := bunrepo.Open(ctx, memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunrepo.Close() })

	notes, err := bunrepo.NewRepository[Note, int64](pageConfig)
	require.NoError(t, err)
	_, err = notes.Save(ctx, &Note{Text: "kept"})
	require.NoError(t, err)

	before := database.GetDB()
	require.NoError(t, database.GetDatabaseManager().Reconnect(ctx))
	assert.NotSame(t, before, database.GetDB())

	all, err := notes.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].Text)

	_, err = notes.Save(ctx, &Note{Text: "after"})
	require.NoError(t, err)
	count, err := notes.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
