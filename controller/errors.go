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

package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/types"
)

// ErrBadRequest marks malformed path parameters and request bodies.
var ErrBadRequest = errors.New("bad request")

// ErrorPayload is the JSON body of every failed request.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MapError converts a repository or storage error into a status code and payload.
func MapError(err error) (int, ErrorPayload) {
	var repoErr *types.Error
	if errors.As(err, &repoErr) {
		payload := ErrorPayload{Error: repoErr.Identifier(), Message: repoErr.Reason()}
		if repoErr.Kind == types.NotFound {
			return http.StatusNotFound, payload
		}
		return http.StatusBadRequest, payload
	}
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest, ErrorPayload{Error: "Bad Request", Message: err.Error()}
	}
	if database.IsDuplicateKey(err) {
		return http.StatusConflict, ErrorPayload{Error: "Conflict", Message: "A record with the same key already exists."}
	}
	return http.StatusInternalServerError, ErrorPayload{Error: "Internal Server Error"}
}

// WriteError writes the mapped error response and aborts the request.
func WriteError(c *gin.Context, err error) {
	status, payload := MapError(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, payload)
}
