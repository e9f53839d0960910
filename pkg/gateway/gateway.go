// Package gateway serves the coordinator over plain HTTP/JSON for callers that
// do not embed the redlock package, plus status and prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	pb "github.com/pixperk/quorumlock/api/v1"
	"github.com/pixperk/quorumlock/pkg/redlock"
	"github.com/pixperk/quorumlock/pkg/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 16

type Server struct {
	httpServer *http.Server
	coord      *redlock.Coordinator
	logger     hclog.Logger
}

func NewServer(httpAddr string, coord *redlock.Coordinator, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{
		coord:  coord,
		logger: logger.Named("gateway"),
	}
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/leases/{resource}", s.acquire).Methods(http.MethodPost).Name("acquire")
	r.HandleFunc("/v1/leases/{resource}", s.release).Methods(http.MethodDelete).Name("release")
	r.HandleFunc("/v1/leases/{resource}", s.holder).Methods(http.MethodGet).Name("holder")
	r.HandleFunc("/status", s.status).Methods(http.MethodGet).Name("status")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP gateway: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type acquireRequest struct {
	TTLMs int64 `json:"ttl_ms"` //0 = configured default
	Retry bool  `json:"retry"`
}

type grantResponse struct {
	Resource     string   `json:"resource"`
	Token        string   `json:"token"`
	FencingToken uint64   `json:"fencing_token"`
	ValidityMs   int64    `json:"validity_ms"`
	Acknowledged []string `json:"acknowledged"`
	State        string   `json:"state"`
}

type releaseRequest struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error        string   `json:"error"`
	Reason       string   `json:"reason,omitempty"`
	Acknowledged int      `json:"acknowledged,omitempty"`
	Quorum       int      `json:"quorum,omitempty"`
	Failed       []string `json:"failed,omitempty"`
}

func (s *Server) acquire(w http.ResponseWriter, r *http.Request) {
	resource := mux.Vars(r)["resource"]

	var req acquireRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
			return
		}
	}
	if req.TTLMs < 0 {
		writeError(w, http.StatusBadRequest, errorResponse{Error: types.ErrInvalidTTL.Error()})
		return
	}
	ttl := time.Duration(req.TTLMs) * time.Millisecond

	var (
		grant *types.LeaseGrant
		err   error
	)
	if req.Retry {
		grant, err = s.coord.AcquireWithRetry(r.Context(), resource, ttl)
	} else {
		grant, err = s.coord.Acquire(r.Context(), resource, ttl)
	}
	if err != nil {
		s.writeAcquireError(w, resource, err)
		return
	}

	writeJSON(w, http.StatusOK, grantResponse{
		Resource:     grant.Resource,
		Token:        grant.Token,
		FencingToken: grant.FencingToken,
		ValidityMs:   grant.Validity.Milliseconds(),
		Acknowledged: grant.Acknowledged,
		State:        types.StateGranted.String(),
	})
}

func (s *Server) writeAcquireError(w http.ResponseWriter, resource string, err error) {
	var acqErr *types.AcquireError
	switch {
	case errors.As(err, &acqErr):
		code := http.StatusConflict
		if acqErr.Reason == types.ReasonFencingTokenFail {
			code = http.StatusServiceUnavailable
		}
		writeError(w, code, errorResponse{
			Error:        err.Error(),
			Reason:       acqErr.Reason,
			Acknowledged: acqErr.Acknowledged,
			Quorum:       acqErr.Quorum,
		})
	case errors.Is(err, types.ErrInvalidTTL):
		writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("acquire failed", "resource", resource, "error", err)
		writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	resource := mux.Vars(r)["resource"]

	var req releaseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "token required"})
		return
	}

	err := s.coord.Release(r.Context(), &types.LeaseGrant{Resource: resource, Token: req.Token})
	var relErr *types.ReleaseError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &relErr):
		writeError(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Failed: relErr.Failed})
	default:
		writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) holder(w http.ResponseWriter, r *http.Request) {
	resource := mux.Vars(r)["resource"]
	token, held := s.coord.Holder(r.Context(), resource)

	writeJSON(w, http.StatusOK, map[string]any{
		"resource": resource,
		"held":     held,
		"token":    token,
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	cfg := s.coord.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"stores":         s.coord.Stores(),
		"quorum":         s.coord.Quorum(),
		"store_timeout":  cfg.StoreTimeout.String(),
		"default_ttl":    cfg.DefaultTTL.String(),
		"fencing_scope":  cfg.FencingScope,
		"drift_factor":   cfg.DriftFactor,
		"drift_margin":   cfg.DriftMargin.String(),
		"retry_attempts": cfg.Retry.Tries,
	})
}

// status and metrics of a store node
func NodeHandler(status func() pb.Status) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		st := status()
		writeJSON(w, http.StatusOK, map[string]any{
			"node_id":   st.NodeID,
			"backend":   st.Backend,
			"is_leader": st.IsLeader,
			"leader":    st.Leader,
			"keys":      st.Keys,
		})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, resp errorResponse) {
	writeJSON(w, code, resp)
}
