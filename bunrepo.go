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

// Package bunrepo wires configuration, the global database and generic
// repositories together.
package bunrepo

import (
	"context"
	"fmt"

	"github.com/tomoncle/bunrepo/config"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/repository"
	"github.com/tomoncle/bunrepo/types"
)

// Open applies the logging settings of cfg, connects the global database
// (running migrations when enabled) and returns the pagination config shared
// by every repository. Models must be registered with database.RegisterModel
// before Open for their tables to be created.
func Open(ctx context.Context, cfg *config.Config) (*types.PaginationConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be empty")
	}
	cfg.ApplyLogging()
	pageConfig, err := cfg.PaginationConfig()
	if err != nil {
		return nil, err
	}
	if _, err := database.InitDB(ctx, &cfg.Database); err != nil {
		return nil, err
	}
	return pageConfig, nil
}

var _ repository.ConnPool = (*database.Pool)(nil)

// NewRepository returns a repository over the global database. It fails when
// Open (or database.InitDB) has not been called. The repository follows the
// global database across reconnects.
func NewRepository[T any, ID comparable](pageConfig *types.PaginationConfig) (*repository.BaseRepository[T, ID], error) {
	if database.GetDB() == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return repository.NewRepository[T, ID](database.GlobalPool(), pageConfig), nil
}

// Close releases the global database.
func Close() error {
	return database.CloseDB()
}
