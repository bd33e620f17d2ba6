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

package types

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against *Error values of the same kind.
var (
	ErrInvalidPageLimit = &Error{Kind: InvalidPageLimit}
	ErrInvalidPage      = &Error{Kind: InvalidPage}
	ErrNotFound         = &Error{Kind: NotFound}
)

// Error is the repository error variant. Only the fields relevant to Kind are set:
// Limit for InvalidPageLimit, Page and Limit for InvalidPage, Entity and ID for NotFound.
type Error struct {
	Kind   ErrorKind
	Page   int
	Limit  int
	Entity string
	ID     any
}

// NewInvalidPageLimitError reports a pagination config built with a non-positive limit.
func NewInvalidPageLimitError(limit int) *Error {
	return &Error{Kind: InvalidPageLimit, Limit: limit}
}

// NewInvalidPageError reports a listing request for a non-positive page.
func NewInvalidPageError(page, limit int) *Error {
	return &Error{Kind: InvalidPage, Page: page, Limit: limit}
}

// NewNotFoundError reports a required lookup that matched no record.
func NewNotFoundError(entity string, id any) *Error {
	return &Error{Kind: NotFound, Entity: entity, ID: id}
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidPageLimit:
		return fmt.Sprintf("%s: %s (got %d)", e.Kind.Name(), e.Kind.Desc(), e.Limit)
	case InvalidPage:
		return fmt.Sprintf("%s: %s (got %d)", e.Kind.Name(), e.Kind.Desc(), e.Page)
	case NotFound:
		if e.Entity != "" {
			return fmt.Sprintf("%s: %s with id %v", e.Kind.Name(), e.Entity, e.ID)
		}
		return fmt.Sprintf("%s: id %v", e.Kind.Name(), e.ID)
	default:
		return e.Kind.Name()
	}
}

// Identifier returns the short name of the failure.
func (e *Error) Identifier() string { return e.Kind.Name() }

// Reason returns the human readable description of the failure.
func (e *Error) Reason() string { return e.Kind.Desc() }

// Is matches any *Error carrying the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the ErrorKind of err, or 0 when err is not a repository error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
