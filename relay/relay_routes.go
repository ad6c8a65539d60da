package relay

import (
	"net/http"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/logging"
	"github.com/eventrelay/relay/internal/middleware"
	"github.com/eventrelay/relay/internal/processor"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/gorilla/mux"
)

// makeRouter creates the router with all of the relay's endpoints.
//
// The route templates, such as "/api/{projectId}/envelope/", appear in metrics data under the
// "route" tag, so variable names must stay consistent.
func (r *Relay) makeRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(logging.ContextLoggersMiddleware(r.loggers))
	if r.loggers.GetMinLevel() == ldlog.Debug {
		router.Use(logging.RequestLoggerMiddleware(r.loggers))
	}

	router.Handle("/api/relay/healthcheck/live/", middleware.RequestCount(r.healthcheck(false))).Methods("GET")
	router.Handle("/api/relay/healthcheck/ready/", middleware.RequestCount(r.healthcheck(true))).Methods("GET")
	if h := r.metricsManager.PrometheusHandler(); h != nil {
		router.Handle("/metrics", h).Methods("GET")
	}

	if r.capture != nil {
		router.HandleFunc("/api/relay/events/{eventId}/", r.getCapturedEvent).Methods("GET")
	}

	maxEnvelope := r.config.Limits.MaxEnvelopeSize.GetOrElse(processor.DefaultMaxEnvelopeSize).Bytes()
	maxEvent := r.config.Limits.MaxEventSize.GetOrElse(processor.DefaultMaxEventSize).Bytes()
	maxAPIPayload := r.config.Limits.MaxAPIPayloadSize.GetOrElse(defaultMaxAPIPayload).Bytes()
	signatureMaxAge := r.config.Auth.SignatureMaxAge.GetOrElse(config.DefaultSignatureMaxAge)

	relaysRouter := router.PathPrefix("/api/0/relays/").Subrouter()
	relaysRouter.Use(middleware.RequestCount, middleware.DecodeBody(maxAPIPayload))
	if r.credentials != nil {
		relaysRouter.HandleFunc("/register/challenge/", r.registerChallenge(signatureMaxAge)).Methods("POST")
		relaysRouter.HandleFunc("/register/response/", r.registerResponse(signatureMaxAge)).Methods("POST")
	}
	relaysRouter.Handle("/projectconfigs/",
		middleware.VerifyRelaySignature(r.registry, signatureMaxAge)(http.HandlerFunc(r.getProjectConfigs))).
		Methods("POST")

	// Browsers send preflight requests to the ingestion endpoints, so these accept OPTIONS too.
	envelopeRouter := router.PathPrefix("/api/{projectId:[0-9]+}/envelope/").Subrouter()
	envelopeRouter.Use(middleware.Chain(
		middleware.CORS,
		middleware.RequestCount,
		middleware.ExtractOptionalAuth(r.clock.Now),
		middleware.DecodeBody(maxEnvelope),
	))
	envelopeRouter.HandleFunc("", r.postEnvelope).Methods("POST", "OPTIONS")

	storeRouter := router.PathPrefix("/api/{projectId:[0-9]+}/store/").Subrouter()
	storeRouter.Use(middleware.Chain(
		middleware.CORS,
		middleware.RequestCount,
		middleware.ExtractAuth(r.clock.Now),
		middleware.DecodeBody(maxEvent),
	))
	storeRouter.HandleFunc("", r.postStore).Methods("POST", "OPTIONS")

	if r.mode != config.RelayModeCapture && r.config.HTTP.ForwardUnknownRequests.GetOrElse(true) {
		router.PathPrefix("/api/").Handler(middleware.RequestCount(r.makeForwardHandler()))
	}
	return router
}
