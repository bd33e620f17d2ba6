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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

type querySilentKey struct{}

// WithQuerySilent returns a context whose statements QueryHook does not
// print. Other queries on the same database keep logging.
func WithQuerySilent(ctx context.Context) context.Context {
	return context.WithValue(ctx, querySilentKey{}, true)
}

// IsQuerySilent reports whether ctx was derived from WithQuerySilent.
func IsQuerySilent(ctx context.Context) bool {
	silent, _ := ctx.Value(querySilentKey{}).(bool)
	return silent
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

// QueryHook prints every executed statement with its duration, colored by
// operation. Failed statements are followed by the error type and message.
type QueryHook struct {
	writer  io.Writer
	verbose bool
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a QueryHook writing to w. Without verbose only failed
// statements are printed; sql.ErrNoRows is never treated as a failure.
func NewQueryHook(w io.Writer, verbose bool) *QueryHook {
	return &QueryHook{writer: w, verbose: verbose}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if IsQuerySilent(ctx) {
		return
	}
	failed := event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) && !errors.Is(event.Err, sql.ErrTxDone)
	if !h.verbose && !failed {
		return
	}

	now := time.Now()
	line := fmt.Sprintf("%s %s %12s  %s",
		now.Format("2006-01-02 15:04:05.000"),
		color.CyanString("[BUN]"),
		now.Sub(event.StartTime).Round(time.Microsecond),
		colorOperation(event),
	)
	if failed {
		typ := reflect.TypeOf(event.Err).String()
		line += "\t" + color.New(color.BgRed, color.FgWhite).Sprintf(" %s: %s ", typ, event.Err.Error())
	}
	_, _ = fmt.Fprintln(h.writer, line)
}

func colorOperation(event *bun.QueryEvent) string {
	if c, ok := operationColors[event.Operation()]; ok {
		return c.Sprint(event.Query)
	}
	return color.RedString(event.Query)
}

// slowQueryHook warns through the database logger when a statement takes
// longer than slowTime.
type slowQueryHook struct {
	slowTime time.Duration
	logger   Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || h.logger == nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration > h.slowTime {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
	}
}
