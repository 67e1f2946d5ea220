// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/urfave/negroni"
)

var routeLabels = []string{"route", "method", "code"}

var (
	requestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quotes",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests being served, per route.",
	}, []string{"route"})
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quotes",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Served requests by route, method and status code.",
	}, routeLabels)
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quotes",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Request latency by route, method and status code.",
		// Uploads and tender fan-outs sit in the upper buckets.
		Buckets: prometheus.ExponentialBuckets(0.005, 2.5, 9),
	}, routeLabels)
	responseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quotes",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Response body size by route, method and status code.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	}, routeLabels)
)

// WrapHandlerWithMetrics instruments a route.
func WrapHandlerWithMetrics(route string, handler http.Handler) http.HandlerFunc {
	inFlight := requestsInFlight.WithLabelValues(route)
	return func(w http.ResponseWriter, r *http.Request) {
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		rw := negroni.NewResponseWriter(w)
		handler.ServeHTTP(rw, r)

		labels := prometheus.Labels{"route": route, "method": r.Method, "code": strconv.Itoa(rw.Status())}
		requestsTotal.With(labels).Inc()
		requestDuration.With(labels).Observe(time.Since(start).Seconds())
		responseSize.With(labels).Observe(float64(rw.Size()))
	}
}
