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

package database

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHookCountsQueries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "metrics")
	hook := NewMetricsHook(prometheus.NewRegistry())
	db.AddQueryHook(hook)

	_, err := db.NewCreateTable().Model((*account)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&account{Email: "m@example.com"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&account{Email: "m@example.com"}).Exec(ctx)
	require.Error(t, err)
	_, err = db.NewSelect().Model((*account)(nil)).Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(hook.queries.WithLabelValues("INSERT", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.queries.WithLabelValues("INSERT", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.queries.WithLabelValues("SELECT", "success")))
	assert.Equal(t, 3, testutil.CollectAndCount(hook.duration))
}

func TestQueryHookOutput(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "hook")
	var buf bytes.Buffer
	db.AddQueryHook(NewQueryHook(&buf, false))

	_, err := db.NewCreateTable().Model((*account)(nil)).Exec(ctx)
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "successful statements are quiet without verbose")

	_, err = db.NewSelect().Table("missing").Exec(ctx)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "no such table")

	buf.Reset()
	_, _ = db.NewSelect().Table("missing").Exec(WithQuerySilent(ctx))
	assert.Empty(t, buf.String())

	_, _ = db.NewSelect().Table("missing").Exec(ctx)
	assert.Contains(t, buf.String(), "no such table", "silence is scoped to the derived context")
}

func TestMigrationsDoNotSilenceOtherQueries(t *testing.T) {
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); ok {
		t.Skip("BUNDEBUG_MIGRATION prints migration statements")
	}
	ctx := context.Background()
	db := openTestDB(t, "hook_migrations")
	var buf bytes.Buffer
	db.AddQueryHook(NewQueryHook(&buf, true))

	require.NoError(t, NewMigrationManager(db, nil).WithModels((*account)(nil)).RunMigrations(ctx))
	assert.Empty(t, buf.String(), "migration statements are muted")

	_, err := db.NewSelect().Model((*account)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SELECT count(*)")

	assert.False(t, IsQuerySilent(ctx))
	assert.True(t, IsQuerySilent(WithQuerySilent(ctx)))
}
