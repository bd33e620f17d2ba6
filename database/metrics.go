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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptrace/bun"
)

// MetricsHook records query counts and latencies per SQL operation.
type MetricsHook struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ bun.QueryHook = (*MetricsHook)(nil)

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *MetricsHook
)

// NewMetricsHook registers the query metrics on reg and returns the hook.
func NewMetricsHook(reg prometheus.Registerer) *MetricsHook {
	factory := promauto.With(reg)
	return &MetricsHook{
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bunrepo_db_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bunrepo_db_query_duration_seconds",
				Help:    "Database query latency in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
	}
}

// DefaultMetricsHook returns the hook registered on the default prometheus registry.
func DefaultMetricsHook() *MetricsHook {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetricsHook(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (h *MetricsHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	operation := event.Operation()
	status := "success"
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		status = "error"
	}
	h.queries.WithLabelValues(operation, status).Inc()
	h.duration.WithLabelValues(operation).Observe(time.Since(event.StartTime).Seconds())
}
