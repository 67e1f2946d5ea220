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

package statemachine

import (
	"errors"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quotes",
		Subsystem: "engine",
		Name:      "transitions_total",
		Help:      "State change requests by category, target state and result.",
	}, []string{"category", "to", "result"})
	fanOutChildrenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quotes",
		Subsystem: "engine",
		Name:      "fanout_children_total",
		Help:      "Children visited by tender cancellations and broadcasts, by result.",
	}, []string{"operation", "result"})
)

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, quote.ErrInvalidTransition):
		return "refused"
	case errors.Is(err, quote.ErrConflictingUpdate):
		return "conflict"
	default:
		return "error"
	}
}

func observeTransition(category quote.Category, to quote.State, err error) {
	transitionsTotal.WithLabelValues(category.String(), to.String(), transitionResult(err)).Inc()
}

func observeFanOut(operation string, succeeded, failed, skipped int) {
	fanOutChildrenTotal.WithLabelValues(operation, "succeeded").Add(float64(succeeded))
	fanOutChildrenTotal.WithLabelValues(operation, "failed").Add(float64(failed))
	fanOutChildrenTotal.WithLabelValues(operation, "skipped").Add(float64(skipped))
}
