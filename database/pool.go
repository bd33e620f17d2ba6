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
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Pool hands out connections from whatever database a manager currently
// holds. Repositories built on a Pool keep working across Reconnect and
// InitDB, which replace the underlying *bun.DB.
type Pool struct {
	current func() *bun.DB
	last    atomic.Pointer[bun.DB]
}

// NewPool returns a Pool resolving its database through current on every use.
func NewPool(current func() *bun.DB) *Pool {
	p := &Pool{current: current}
	if db := current(); db != nil {
		p.last.Store(db)
	}
	return p
}

// GlobalPool follows the global database set up by InitDB.
func GlobalPool() *Pool {
	return NewPool(GetDB)
}

// ManagerPool follows the database held by manager.
func ManagerPool(manager AbstractDatabaseManager) *Pool {
	return NewPool(manager.GetDB)
}

func (p *Pool) resolve() *bun.DB {
	if db := p.current(); db != nil {
		p.last.Store(db)
		return db
	}
	return p.last.Load()
}

// Conn acquires a connection from the current database. It fails while no
// database is connected rather than falling back to a retired one.
func (p *Pool) Conn(ctx context.Context) (bun.Conn, error) {
	db := p.current()
	if db == nil {
		return bun.Conn{}, fmt.Errorf("database not connected")
	}
	p.last.Store(db)
	return db.Conn(ctx)
}

// Dialect and Table only read schema metadata, so the last database seen is
// good enough while disconnected.
func (p *Pool) Dialect() schema.Dialect {
	return p.resolve().Dialect()
}

func (p *Pool) Table(typ reflect.Type) *schema.Table {
	return p.resolve().Table(typ)
}
