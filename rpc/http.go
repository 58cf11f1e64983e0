package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"excelsior/core"
	"excelsior/crypto"
	"excelsior/observability"
	"excelsior/observability/logging"
	"excelsior/services/history"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader        = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeConflict       = -32009
	codeInsufficient   = -32010
	codeInvalidProof   = -32011
	codeNotReady       = -32012
	codeNotInitialized = -32013
	codeRateLimited    = -32020
)

// HistoryReader is the query side of the event history.
type HistoryReader interface {
	Query(ctx context.Context, f history.Filter) ([]history.Record, error)
}

// Config configures authentication, throttling and request limits.
type Config struct {
	JWTSecret          []byte
	JWTIssuer          string
	JWTAudience        string
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxBodyBytes       int64
	// TrustedProxies lists peer IPs allowed to report the client address
	// through X-Forwarded-For.
	TrustedProxies []string
}

// Server serves the ledger operations over JSON-RPC 2.0.
type Server struct {
	node     *core.Node
	history  HistoryReader
	logger   *slog.Logger
	auth     *authenticator
	limiter  *callerLimiter
	proxies  map[string]struct{}
	maxBytes int64
	methods  map[string]method
}

// NewServer builds a server over node. history may be nil, in which case
// history_events reports the feature as unavailable.
func NewServer(node *core.Node, history HistoryReader, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBytes
	}
	s := &Server{
		node:     node,
		history:  history,
		logger:   logger,
		auth:     newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		limiter:  newCallerLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		proxies:  make(map[string]struct{}),
		maxBytes: maxBytes,
	}
	for _, proxy := range cfg.TrustedProxies {
		if ip := canonicalIP(proxy); ip != "" {
			s.proxies[ip] = struct{}{}
		}
	}
	s.methods = s.routes()
	return s
}

// Handler returns the HTTP routes: POST /rpc, GET /metrics and GET /healthz.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	r.Post("/", s.handle)
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle decodes one JSON-RPC request, authenticates and throttles the
// caller, then dispatches to the method table.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
	if requestID == "" || len(requestID) > 64 {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")
	ctx := logging.WithRequestID(r.Context(), requestID)

	reader := http.MaxBytesReader(w, r.Body, s.maxBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	module := moduleOf(req.Method)
	m, ok := s.methods[req.Method]
	if !ok {
		observability.ModuleMetrics().Observe(module, "unknown", codeMethodNotFound, time.Since(start))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}

	var caller crypto.Address
	source := s.clientSource(r)
	if m.auth {
		subject, rpcErr := s.auth.authenticate(r)
		if rpcErr != nil {
			observability.ModuleMetrics().Observe(module, req.Method, rpcErr.Code, time.Since(start))
			writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		caller = subject
		source = subject.String()
	}
	if !s.limiter.allow(source) {
		observability.ModuleMetrics().RecordThrottle(module, "rate_limit")
		observability.ModuleMetrics().Observe(module, req.Method, codeRateLimited, time.Since(start))
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	var params json.RawMessage
	switch len(req.Params) {
	case 0:
	case 1:
		params = req.Params[0]
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "at most one parameter object expected", nil)
		return
	}

	result, err := m.call(ctx, caller, params)
	if err != nil {
		rpcErr := toRPCError(err)
		observability.ModuleMetrics().Observe(module, req.Method, rpcErr.Code, time.Since(start))
		s.logger.DebugContext(ctx, "rpc request failed",
			slog.String("method", req.Method),
			slog.String("request_id", requestID),
			slog.Int("code", rpcErr.Code),
			slog.Any("error", err))
		status := http.StatusOK
		if rpcErr.Code == codeInvalidParams {
			status = http.StatusBadRequest
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(module, req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func moduleOf(methodName string) string {
	if idx := strings.IndexByte(methodName, '_'); idx > 0 {
		return methodName[:idx]
	}
	return methodName
}

// clientSource keys the rate limiter for unauthenticated calls. The
// X-Forwarded-For chain is read only when the peer is a trusted proxy, and
// then from the right, skipping other trusted hops.
func (s *Server) clientSource(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	if _, trusted := s.proxies[remote]; !trusted {
		return remote
	}
	parts := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(parts) - 1; i >= 0; i-- {
		candidate := canonicalIP(parts[i])
		if candidate == "" {
			continue
		}
		if _, trusted := s.proxies[candidate]; trusted {
			continue
		}
		return candidate
	}
	return remote
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if ip := canonicalIP(host); ip != "" {
		return ip
	}
	return host
}

// canonicalIP returns the normalised form of an IP with an optional port, or
// "" when value holds no IP.
func canonicalIP(value string) string {
	value = strings.TrimSpace(value)
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	ip := net.ParseIP(strings.Trim(value, "[]"))
	if ip == nil {
		return ""
	}
	return ip.String()
}
