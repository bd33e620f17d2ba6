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

// Package controller exposes repositories over HTTP with gin.
package controller

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/bunrepo/repository"
	"github.com/tomoncle/bunrepo/types"
	"github.com/tomoncle/bunrepo/utils"
)

var logger = utils.NewLogger("CONTROLLER")

// Controller maps a collection path onto one repository:
//
//	GET    path            ListAll, or ListPage when ?page=N is given
//	GET    path?page=N&total=true   Paginate
//	POST   path            Save
//	GET    path/:id        FindByID
//	DELETE path/:id        DeleteByID
type Controller[T any, ID comparable] struct {
	repo    repository.Repository[T, ID]
	path    string
	parseID func(string) (ID, error)
}

func NewController[T any, ID comparable](repo repository.Repository[T, ID], path string, parseID func(string) (ID, error)) *Controller[T, ID] {
	return &Controller[T, ID]{repo: repo, path: path, parseID: parseID}
}

// Register mounts the routes on r.
func (h *Controller[T, ID]) Register(r gin.IRouter) {
	g := r.Group(h.path)
	{
		g.GET("", h.list)
		g.POST("", h.create)
		g.GET("/:id", h.getByID)
		g.DELETE("/:id", h.deleteByID)
	}
}

func (h *Controller[T, ID]) list(c *gin.Context) {
	raw, present := c.GetQuery("page")
	req, err := types.ParsePageRequest(raw, present)
	if err != nil {
		WriteError(c, err)
		return
	}
	ctx := c.Request.Context()
	if !req.Paged {
		items, err := h.repo.ListAll(ctx)
		if err != nil {
			WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
		return
	}
	if withTotal, _ := strconv.ParseBool(c.Query("total")); withTotal {
		result, err := h.repo.Paginate(ctx, req.Page)
		if err != nil {
			WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}
	items, err := h.repo.ListPage(ctx, req.Page)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Controller[T, ID]) create(c *gin.Context) {
	entity := new(T)
	if err := c.ShouldBindJSON(entity); err != nil {
		WriteError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	saved, err := h.repo.Save(c.Request.Context(), entity)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Controller[T, ID]) getByID(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	entity, found, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	if !found {
		WriteError(c, types.NewNotFoundError(reflect.TypeOf((*T)(nil)).Elem().Name(), id))
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *Controller[T, ID]) deleteByID(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteByID(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Controller[T, ID]) pathID(c *gin.Context) (ID, bool) {
	raw := c.Param("id")
	id, err := h.parseID(raw)
	if err != nil {
		WriteError(c, fmt.Errorf("%w: invalid id %q", ErrBadRequest, raw))
		return id, false
	}
	return id, true
}

// ParseInt64ID parses decimal int64 path ids.
func ParseInt64ID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// ParseStringID accepts any non-empty path id.
func ParseStringID(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty id")
	}
	return raw, nil
}

// RequestLogger logs one line per request through the controller logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(utils.KeyValues(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		))
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
