// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utilmetric

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/utils/wrappers"
)

// APIInterceptor times JSON-RPC requests. Register InterceptRequest and
// AfterRequest on the rpc server.
type APIInterceptor interface {
	InterceptRequest(i *rpc.RequestInfo) *http.Request
	AfterRequest(i *rpc.RequestInfo)
}

type contextKey int

const requestTimestampKey contextKey = iota

var methodLabels = []string{"method"}

type apiInterceptor struct {
	clock *mockable.Clock

	requestDurationCount *prometheus.CounterVec
	requestDurationSum   *prometheus.GaugeVec
	requestErrors        *prometheus.CounterVec
}

func NewAPIInterceptor(registerer prometheus.Registerer, clock *mockable.Clock) (APIInterceptor, error) {
	apr := &apiInterceptor{
		clock: clock,
		requestDurationCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "request_duration_count",
				Help: "Number of times this type of request was made",
			},
			methodLabels,
		),
		requestDurationSum: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "request_duration_sum",
				Help: "Amount of time in nanoseconds that has been spent handling this type of request",
			},
			methodLabels,
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "request_error_count",
				Help: "Number of request errors",
			},
			methodLabels,
		),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(apr.requestDurationCount),
		registerer.Register(apr.requestDurationSum),
		registerer.Register(apr.requestErrors),
	)
	return apr, errs.Err
}

func (apr *apiInterceptor) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	ctx := context.WithValue(i.Request.Context(), requestTimestampKey, apr.clock.Time())
	return i.Request.WithContext(ctx)
}

func (apr *apiInterceptor) AfterRequest(i *rpc.RequestInfo) {
	timestamp, ok := i.Request.Context().Value(requestTimestampKey).(time.Time)
	if !ok {
		return
	}

	labels := prometheus.Labels{
		"method": i.Method,
	}
	apr.requestDurationCount.With(labels).Inc()
	apr.requestDurationSum.With(labels).Add(float64(apr.clock.Time().Sub(timestamp)))
	if i.Error != nil {
		apr.requestErrors.With(labels).Inc()
	}
}
