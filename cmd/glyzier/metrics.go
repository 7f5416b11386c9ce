// Package main wires the Glyzier marketplace API together.
//
// Metric naming follows Prometheus conventions:
//   - glyzier_ prefix for all custom metrics
//   - _total suffix for counters
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/glyzier/auth"
	"github.com/goliatone/go-logger/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glyzier_logins_total",
			Help: "Total number of login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// PasswordResetsTotal counts completed password resets.
	PasswordResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "glyzier_password_resets_total",
			Help: "Total number of completed password resets.",
		},
	)

	// StatusChangesTotal counts account lifecycle transitions.
	StatusChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glyzier_account_status_changes_total",
			Help: "Total account lifecycle transitions by target status.",
		},
		[]string{"to_status"},
	)

	// PolicyRejectionsTotal counts requests rejected by the route policy.
	PolicyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glyzier_policy_rejections_total",
			Help: "Total requests rejected by the authorization policy.",
		},
		[]string{"method"},
	)

	// ImpersonationsTotal counts admin impersonation attempts by outcome.
	ImpersonationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glyzier_impersonations_total",
			Help: "Total impersonation attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		LoginsTotal,
		PasswordResetsTotal,
		PolicyRejectionsTotal,
		StatusChangesTotal,
		ImpersonationsTotal,
	)
}

// metricsSink adapts the activity stream into Prometheus counters. It is an
// auth.ActivitySink, so every auth event recorded by the core shows up on
// the metrics endpoint without the core knowing about Prometheus.
func metricsSink() auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		switch event.EventType {
		case auth.ActivityEventLoginSuccess:
			LoginsTotal.WithLabelValues("success").Inc()
		case auth.ActivityEventLoginFailure:
			LoginsTotal.WithLabelValues("failure").Inc()
		case auth.ActivityEventPasswordResetSuccess:
			PasswordResetsTotal.Inc()
		case auth.ActivityEventUserStatusChanged:
			StatusChangesTotal.WithLabelValues(string(event.ToStatus)).Inc()
		case auth.ActivityEventImpersonationSuccess:
			ImpersonationsTotal.WithLabelValues("success").Inc()
		case auth.ActivityEventImpersonationFailure:
			ImpersonationsTotal.WithLabelValues("failure").Inc()
		}
		return nil
	})
}

// ServeMetrics exposes the Prometheus endpoint on its own listener so the
// API port never serves operational data.
func ServeMetrics(addr string, lgr glog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lgr.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lgr.Error("metrics server error", "error", err)
		}
	}()
}
