// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsCreated tracks total ConnectionRecords persisted
	ConnectionsCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "created_total",
			Help:      "Total number of connection records created",
		},
		[]string{"role"}, // requester, responder
	)

	// ConnectionsActive tracks connections currently in the completed state
	ConnectionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of connections currently in the completed state",
		},
	)

	// ConnectionsAbandoned tracks connections that transitioned to abandoned
	ConnectionsAbandoned = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "abandoned_total",
			Help:      "Total number of connections abandoned",
		},
	)

	// ConnectionStateDuration tracks time spent resolving a connection state transition
	ConnectionStateDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "state_transition_duration_seconds",
			Help:      "Duration of a connection state transition in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
		[]string{"operation"}, // create_request, receive_request, create_response, accept_response
	)

	// ConnectionTargetResolutions tracks connection.Targets resolutions by cache outcome
	ConnectionTargetResolutions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "target_resolutions_total",
			Help:      "Total number of connection target resolutions by cache outcome",
		},
		[]string{"outcome"}, // hit, miss
	)
)
