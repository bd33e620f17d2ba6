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

// Command userapi serves a users collection over HTTP backed by a generic
// bun repository.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tomoncle/bunrepo"
	"github.com/tomoncle/bunrepo/config"
	"github.com/tomoncle/bunrepo/controller"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/repository"
	"github.com/tomoncle/bunrepo/types"
	"github.com/tomoncle/bunrepo/utils"
	"github.com/uptrace/bun"
)

var logger = utils.NewLogger("USERAPI")

type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	ID    int64  `bun:"id,pk,autoincrement" json:"id"`
	Name  string `bun:"name,notnull,unique" json:"name"`
	Email string `bun:"email" json:"email,omitempty"`
}

// UserRepository adds name lookups and normalizes names on save.
type UserRepository struct {
	*repository.BaseRepository[User, int64]
}

func NewUserRepository(pool repository.ConnPool, pageConfig *types.PaginationConfig) *UserRepository {
	return &UserRepository{repository.NewRepository[User, int64](pool, pageConfig)}
}

func (r *UserRepository) Save(ctx context.Context, user *User) (*User, error) {
	if user != nil {
		user.Name = strings.TrimSpace(user.Name)
		user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	}
	return r.BaseRepository.Save(ctx, user)
}

// FindByName returns the user with the exact name, or (nil, false, nil).
func (r *UserRepository) FindByName(ctx context.Context, name string) (*User, bool, error) {
	user, err := repository.WithConnectionResult(ctx, r, func(ctx context.Context, conn bun.Conn) (*User, error) {
		user := new(User)
		err := conn.NewSelect().Model(user).Where("?TableAlias.name = ?", name).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return user, err
	})
	if err != nil {
		return nil, false, err
	}
	return user, user != nil, nil
}

func newRouter(cfg *config.Config, users *UserRepository) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), controller.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		status := database.GetHealthStatus(c.Request.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	if cfg.Server.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group(cfg.Server.BasePath)
	controller.NewController[User, int64](users, "/users", controller.ParseInt64ID).Register(api)
	api.GET("/users/by-name/:name", func(c *gin.Context) {
		user, found, err := users.FindByName(c.Request.Context(), c.Param("name"))
		if err != nil {
			controller.WriteError(c, err)
			return
		}
		if !found {
			controller.WriteError(c, types.NewNotFoundError("User", c.Param("name")))
			return
		}
		c.JSON(http.StatusOK, user)
	})
	return r
}

func run(ctx context.Context, cfg *config.Config) error {
	database.RegisterModel((*User)(nil), 0)
	pageConfig, err := bunrepo.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := bunrepo.Close(); err != nil {
			logger.WithError(err).Error("failed to close database")
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(cfg, NewUserRepository(database.GlobalPool(), pageConfig)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("http server listening")
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}

func main() {
	configPath := flag.String("config", utils.EnvDefaultString("CONFIG_FILE", ""), "path to the YAML config file")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			logger.WithError(err).Fatal("failed to render configuration")
		}
		fmt.Print(string(out))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		logger.WithError(err).Fatal("userapi stopped")
	}
}
