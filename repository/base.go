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

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/bunrepo/types"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

// BaseRepository is the default Repository implementation for the bun model T
// whose primary key has type ID. Entity repositories embed it and shadow the
// methods they need to change; base methods never call each other through
// the public method set.
type BaseRepository[T any, ID comparable] struct {
	pool       ConnPool
	pageConfig *types.PaginationConfig
}

var _ Repository[struct{}, int64] = (*BaseRepository[struct{}, int64])(nil)

// NewRepository binds T to pool and cfg. A nil cfg falls back to
// types.DefaultPaginationConfig. Nothing is validated or dialed here.
func NewRepository[T any, ID comparable](pool ConnPool, cfg *types.PaginationConfig) *BaseRepository[T, ID] {
	if cfg == nil {
		cfg = types.DefaultPaginationConfig()
	}
	return &BaseRepository[T, ID]{pool: pool, pageConfig: cfg}
}

func (r *BaseRepository[T, ID]) Dialect() schema.Dialect { return r.pool.Dialect() }

func (r *BaseRepository[T, ID]) PaginationConfig() *types.PaginationConfig { return r.pageConfig }

func (r *BaseRepository[T, ID]) WithConnection(ctx context.Context, body ConnFunc) error {
	conn, err := r.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return body(ctx, conn)
}

func (r *BaseRepository[T, ID]) ListAll(ctx context.Context) ([]*T, error) {
	return WithConnectionResult(ctx, r, func(ctx context.Context, conn bun.Conn) ([]*T, error) {
		entities := make([]*T, 0)
		err := conn.NewSelect().Model(&entities).Scan(ctx)
		return entities, err
	})
}

func (r *BaseRepository[T, ID]) ListPage(ctx context.Context, page int) ([]*T, error) {
	pageRange, err := r.pageConfig.RangeFor(page)
	if err != nil {
		return nil, err
	}
	return WithConnectionResult(ctx, r, func(ctx context.Context, conn bun.Conn) ([]*T, error) {
		return r.selectRange(ctx, conn, pageRange)
	})
}

func (r *BaseRepository[T, ID]) Paginate(ctx context.Context, page int) (*types.Pagination[T], error) {
	pageRange, err := r.pageConfig.RangeFor(page)
	if err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[T](page, r.pageConfig.PageLimit())
	err = r.WithConnection(ctx, func(ctx context.Context, conn bun.Conn) error {
		total, err := conn.NewSelect().Model((*T)(nil)).Count(ctx)
		if err != nil || total == 0 {
			return err
		}
		pagination.Total = total
		pagination.Items, err = r.selectRange(ctx, conn, pageRange)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pagination, nil
}

func (r *BaseRepository[T, ID]) selectRange(ctx context.Context, conn bun.Conn, pageRange types.PageRange) ([]*T, error) {
	entities := make([]*T, 0, pageRange.Limit())
	err := conn.NewSelect().
		Model(&entities).
		OrderExpr("?PKs ASC").
		Offset(pageRange.Offset()).
		Limit(pageRange.Limit()).
		Scan(ctx)
	return entities, err
}

func (r *BaseRepository[T, ID]) FindByID(ctx context.Context, id ID) (*T, bool, error) {
	var found *T
	err := r.WithConnection(ctx, func(ctx context.Context, conn bun.Conn) error {
		var err error
		found, err = r.findOne(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// findOne returns nil without error when no row matches id.
func (r *BaseRepository[T, ID]) findOne(ctx context.Context, conn bun.Conn, id ID) (*T, error) {
	entity := new(T)
	err := conn.NewSelect().Model(entity).Where("?PKs = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *BaseRepository[T, ID]) Count(ctx context.Context) (int, error) {
	return WithConnectionResult(ctx, r, func(ctx context.Context, conn bun.Conn) (int, error) {
		return conn.NewSelect().Model((*T)(nil)).Count(ctx)
	})
}

func (r *BaseRepository[T, ID]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return WithConnectionResult(ctx, r, func(ctx context.Context, conn bun.Conn) ([]*T, error) {
		entities := make([]*T, 0)
		query := conn.NewSelect().Model(&entities)
		if filter != nil {
			query = query.Where(filter.Schema, filter.Args...)
		}
		err := query.Scan(ctx)
		return entities, err
	})
}

func (r *BaseRepository[T, ID]) Save(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("cannot save nil %s", r.entityName())
	}
	err := r.WithConnection(ctx, func(ctx context.Context, conn bun.Conn) error {
		if r.isNew(entity) {
			_, err := conn.NewInsert().Model(entity).Exec(ctx)
			return err
		}
		return r.upsert(ctx, conn, entity)
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *BaseRepository[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	return r.WithConnection(ctx, func(ctx context.Context, conn bun.Conn) error {
		entity, err := r.findOne(ctx, conn, id)
		if err != nil {
			return err
		}
		if entity == nil {
			return types.NewNotFoundError(r.entityName(), id)
		}
		_, err = conn.NewDelete().Model(entity).WherePK().Exec(ctx)
		return err
	})
}

func (r *BaseRepository[T, ID]) table() *schema.Table {
	return r.pool.Table(reflect.TypeOf((*T)(nil)).Elem())
}

func (r *BaseRepository[T, ID]) entityName() string {
	return reflect.TypeOf((*T)(nil)).Elem().Name()
}

// isNew reports whether every primary key field of entity holds its zero value.
func (r *BaseRepository[T, ID]) isNew(entity *T) bool {
	v := reflect.ValueOf(entity).Elem()
	for _, pk := range r.table().PKs {
		if !pk.HasZeroValue(v) {
			return false
		}
	}
	return true
}

func (r *BaseRepository[T, ID]) upsert(ctx context.Context, conn bun.Conn, entity *T) error {
	table := r.table()
	features := r.pool.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, conn, table, entity)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, conn, table, entity)
	default:
		return r.upsertFallback(ctx, conn, entity)
	}
}

func (r *BaseRepository[T, ID]) upsertOnConflict(ctx context.Context, conn bun.Conn, table *schema.Table, entity *T) error {
	keys := make([]schema.Ident, 0, len(table.PKs))
	for _, pk := range table.PKs {
		keys = append(keys, schema.Ident(pk.Name))
	}
	query := conn.NewInsert().Model(entity)
	if len(table.DataFields) == 0 {
		query = query.On("CONFLICT (?) DO NOTHING", bun.In(keys))
	} else {
		query = query.On("CONFLICT (?) DO UPDATE", bun.In(keys))
		for _, field := range table.DataFields {
			query = query.Set("? = EXCLUDED.?", bun.Ident(field.Name), bun.Ident(field.Name))
		}
	}
	_, err := query.Exec(ctx)
	return err
}

func (r *BaseRepository[T, ID]) upsertOnDuplicateKey(ctx context.Context, conn bun.Conn, table *schema.Table, entity *T) error {
	if len(table.DataFields) == 0 {
		_, err := conn.NewInsert().Model(entity).Ignore().Exec(ctx)
		return err
	}
	query := conn.NewInsert().Model(entity).On("DUPLICATE KEY UPDATE")
	for _, field := range table.DataFields {
		query = query.Set("? = VALUES(?)", bun.Ident(field.Name), bun.Ident(field.Name))
	}
	_, err := query.Exec(ctx)
	return err
}

// upsertFallback updates by primary key and inserts when no row was touched.
func (r *BaseRepository[T, ID]) upsertFallback(ctx context.Context, conn bun.Conn, entity *T) error {
	res, err := conn.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := conn.NewInsert().Model(entity).Exec(ctx); err != nil {
		return fmt.Errorf("upsert %s: %w", r.entityName(), err)
	}
	return nil
}
