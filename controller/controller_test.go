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

package controller_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrepo/controller"
	"github.com/tomoncle/bunrepo/repository"
	"github.com/tomoncle/bunrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type User struct {
	bun.BaseModel `bun:"table:users" json:"-"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`
}

func newRouter(t *testing.T, limit int) (*gin.Engine, *repository.BaseRepository[User, int64]) {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.NewCreateTable().Model((*User)(nil)).Exec(context.Background())
	require.NoError(t, err)

	pageConfig, err := types.NewPaginationConfig(limit)
	require.NoError(t, err)
	repo := repository.NewRepository[User, int64](db, pageConfig)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(controller.RequestLogger())
	controller.NewController[User, int64](repo, "/users", controller.ParseInt64ID).Register(r)
	return r, repo
}

func do(r http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func seed(t *testing.T, repo *repository.BaseRepository[User, int64], names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := repo.Save(context.Background(), &User{Name: name})
		require.NoError(t, err)
	}
}

func TestListWithoutPageReturnsEverything(t *testing.T) {
	r, repo := newRouter(t, 2)

	w := do(r, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	seed(t, repo, "One", "Two", "Three")
	w = do(r, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]User](t, w), 3)
}

func TestListPages(t *testing.T) {
	r, repo := newRouter(t, 2)
	seed(t, repo, "One", "Two", "Three")

	cases := map[string][]string{
		"1": {"One", "Two"},
		"2": {"Three"},
		"3": {},
	}
	for page, want := range cases {
		w := do(r, http.MethodGet, "/users?page="+page, nil)
		require.Equal(t, http.StatusOK, w.Code, page)
		got := []string{}
		for _, u := range decode[[]User](t, w) {
			got = append(got, u.Name)
		}
		assert.Equal(t, want, got, "page %s", page)
	}
}

func TestListPaginateWithTotal(t *testing.T) {
	r, repo := newRouter(t, 2)
	seed(t, repo, "One", "Two", "Three")

	w := do(r, http.MethodGet, "/users?page=2&total=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[types.Pagination[User]](t, w)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 2, got.PageSize)
	assert.Equal(t, 3, got.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Three", got.Items[0].Name)
}

func TestListRejectsInvalidPage(t *testing.T) {
	r, _ := newRouter(t, 2)
	for _, page := range []string{"0", "-3", "abc", ""} {
		w := do(r, http.MethodGet, "/users?page="+page, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, page)
		payload := decode[controller.ErrorPayload](t, w)
		assert.Equal(t, "Invalid Page", payload.Error)
		assert.Equal(t, "Page must be above 0.", payload.Message)
	}
}

func TestListRejectsPageBeyondAddressableRange(t *testing.T) {
	r, repo := newRouter(t, 2)
	seed(t, repo, "One", "Two", "Three")

	for _, page := range []string{strconv.Itoa(math.MaxInt/2 + 1), strconv.Itoa(math.MaxInt), "99999999999999999999999"} {
		for _, target := range []string{"/users?page=" + page, "/users?total=true&page=" + page} {
			w := do(r, http.MethodGet, target, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, target)
			assert.Equal(t, "Invalid Page", decode[controller.ErrorPayload](t, w).Error, target)
		}
	}
}

func TestCreateAndGet(t *testing.T) {
	r, _ := newRouter(t, 2)

	w := do(r, http.MethodPost, "/users", []byte(`{"name":"foo"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[User](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "foo", created.Name)

	w = do(r, http.MethodGet, "/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode[User](t, w))
}

func TestCreateRejectsBadBody(t *testing.T) {
	r, _ := newRouter(t, 2)
	w := do(r, http.MethodPost, "/users", []byte(`{"name":`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bad Request", decode[controller.ErrorPayload](t, w).Error)
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	r, repo := newRouter(t, 2)
	seed(t, repo, "foo")
	w := do(r, http.MethodPost, "/users", []byte(`{"name":"foo"}`))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Conflict", decode[controller.ErrorPayload](t, w).Error)
}

func TestGetMissingAndMalformedID(t *testing.T) {
	r, _ := newRouter(t, 2)

	w := do(r, http.MethodGet, "/users/42", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decode[controller.ErrorPayload](t, w).Error)

	w = do(r, http.MethodGet, "/users/forty-two", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete(t *testing.T) {
	r, repo := newRouter(t, 2)
	seed(t, repo, "foo")

	w := do(r, http.MethodDelete, "/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/users/1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	payload := decode[controller.ErrorPayload](t, w)
	assert.Equal(t, "Not Found", payload.Error)
	assert.Equal(t, "The requested record does not exist.", payload.Message)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{types.NewInvalidPageError(0, 2), http.StatusBadRequest, "Invalid Page"},
		{types.NewInvalidPageLimitError(0), http.StatusBadRequest, "Invalid Page Limit"},
		{types.NewNotFoundError("User", 100), http.StatusNotFound, "Not Found"},
		{&mysql.MySQLError{Number: 1062}, http.StatusConflict, "Conflict"},
		{controller.ErrBadRequest, http.StatusBadRequest, "Bad Request"},
		{errors.New("connection reset"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		status, payload := controller.MapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, payload.Error, tc.err.Error())
	}
}

func TestParseIDs(t *testing.T) {
	id, err := controller.ParseInt64ID("17")
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)
	_, err = controller.ParseInt64ID("x")
	assert.Error(t, err)

	s, err := controller.ParseStringID("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	_, err = controller.ParseStringID("")
	assert.Error(t, err)
}
