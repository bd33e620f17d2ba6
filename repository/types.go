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
	"reflect"

	"github.com/tomoncle/bunrepo/types"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// ConnPool is the connection pool a repository draws from. *bun.DB satisfies it.
type ConnPool interface {
	Conn(ctx context.Context) (bun.Conn, error)
	Dialect() schema.Dialect
	Table(typ reflect.Type) *schema.Table
}

var _ ConnPool = (*bun.DB)(nil)

// ConnFunc is a unit of work run on a single connection.
type ConnFunc func(ctx context.Context, conn bun.Conn) error

// ConnScoper hands out a connection for the duration of a callback.
type ConnScoper interface {
	// WithConnection acquires a connection, runs body on it and releases the
	// connection on every exit path, panics included.
	WithConnection(ctx context.Context, body ConnFunc) error
}

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any, ID comparable] interface {
	// ListAll returns every persisted entity in the storage engine's natural order.
	ListAll(ctx context.Context) ([]*T, error)

	// FindByID returns the entity with the given id. A missing record is
	// reported as (nil, false, nil), not as an error.
	FindByID(ctx context.Context, id ID) (*T, bool, error)

	// Save inserts the entity when its primary key is zero, filling in the
	// assigned key, and updates it in place otherwise.
	Save(ctx context.Context, entity *T) (*T, error)

	// DeleteByID removes the entity with the given id, failing with a
	// NotFound error when no record matches.
	DeleteByID(ctx context.Context, id ID) error

	Count(ctx context.Context) (int, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	// ListPage returns the entities inside the window of page, ordered by
	// primary key. Pages past the end of the data come back short or empty.
	ListPage(ctx context.Context, page int) ([]*T, error)

	// Paginate is ListPage plus the total row count.
	Paginate(ctx context.Context, page int) (*types.Pagination[T], error)
}

// Repository combines CRUD, pagination and connection-scoped access.
type Repository[T any, ID comparable] interface {
	CrudRepository[T, ID]
	PageQueryRepository[T]
	ConnScoper
	Dialect() schema.Dialect
	PaginationConfig() *types.PaginationConfig
}

// WithConnectionResult runs body on a scoped connection and returns its result.
func WithConnectionResult[R any](ctx context.Context, scope ConnScoper, body func(ctx context.Context, conn bun.Conn) (R, error)) (R, error) {
	var result R
	err := scope.WithConnection(ctx, func(ctx context.Context, conn bun.Conn) error {
		var err error
		result, err = body(ctx, conn)
		return err
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
