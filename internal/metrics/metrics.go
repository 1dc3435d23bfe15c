// Package metrics exposes the gateway's Prometheus collectors. Collectors
// register against the default registry; the /metrics endpoint serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quadmarket"

var (
	// TokenExchanges counts calls to the provider's token endpoint by grant
	// type ("authorization_code" or "refresh_token") and result ("ok",
	// "rejected", "unreachable").
	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "token_exchanges_total",
		Help:      "Token endpoint exchanges by grant type and result",
	}, []string{"grant", "result"})

	// RefreshShared counts refresh attempts that piggybacked on another
	// in-flight refresh for the same refresh token.
	RefreshShared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "refresh_singleflight_shared_total",
		Help:      "Refreshes that shared another request's exchange",
	})

	// APIRequests counts authorized calls to the backing API by outcome
	// class ("ok", "client_error", "server_error", "unauthorized",
	// "network_error").
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "api_requests_total",
		Help:      "Backing API requests by outcome class",
	}, []string{"class"})

	// GuardDecisions counts guard middleware outcomes ("pass", "refresh",
	// "login_redirect", "config_error").
	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "guard_decisions_total",
		Help:      "Session guard decisions per protected request",
	}, []string{"decision"})
)
