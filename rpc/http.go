package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ratemint/core"
	"ratemint/indexer"
	"ratemint/observability"
	"ratemint/observability/logging"
	telemetry "ratemint/observability/otel"
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
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig tunes the HTTP surface. Zero values select defaults.
type ServerConfig struct {
	// AuthToken, when set, is required as a bearer token on
	// exchange_sendTransaction.
	AuthToken          string
	MaxBodyBytes       int64
	RateLimitPerSecond float64
	RateLimitBurst     int
	ReadHeaderTimeout  time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// Server exposes a node over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	index   *indexer.Store
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *clientLimiter
	methods map[string]method

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer builds a server for node. index may be nil, in which case
// events_list reports that no index is configured.
func NewServer(node *core.Node, index *indexer.Store, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node must not be nil")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBytes
	}
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	s := &Server{
		node:   node,
		index:  index,
		cfg:    cfg,
		logger: logger.With("component", "rpc"),
	}
	if cfg.RateLimitPerSecond > 0 {
		s.limiter = newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
	s.methods = s.routes()
	return s, nil
}

// Handler returns the full HTTP handler: JSON-RPC on POST /, plus /healthz
// and /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "ratemint.rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	if listener == nil {
		return errors.New("rpc: listener must not be nil")
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	s.logger.Info("json-rpc server listening", "address", listener.Addr().String())
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// RPCRequest is a single JSON-RPC call. Params are positional.
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

	status int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

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

// handle decodes one request, dispatches it and writes the response.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	start := time.Now()
	logger := s.logger.With("request_id", requestIDFrom(r.Context()))

	if s.limiter != nil && !s.limiter.allow(clientSource(r)) {
		observability.RPC().RecordThrottle("rate_limit")
		observability.RPC().Observe("", codeRateLimited, time.Since(start))
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
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
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		observability.RPC().Observe("", codeInvalidRequest, time.Since(start))
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		observability.RPC().Observe("", codeInvalidRequest, time.Since(start))
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		observability.RPC().Observe("", codeParseError, time.Since(start))
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}

	result, rpcErr := s.dispatch(r, req)
	duration := time.Since(start)
	if rpcErr != nil {
		observability.RPC().Observe(req.Method, rpcErr.Code, duration)
		logger.Debug("rpc call failed", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		writeError(w, rpcErr.status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.RPC().Observe(req.Method, 0, duration)
	logger.Debug("rpc call served", "method", req.Method, "duration_ms", duration.Milliseconds())
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		return nil, newError(http.StatusBadRequest, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
	}
	if req.Method == "" {
		return nil, newError(http.StatusBadRequest, codeInvalidRequest, "method required", nil)
	}
	m, ok := s.methods[req.Method]
	if !ok {
		return nil, newError(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method)
	}
	ctx, span := telemetry.Tracer().Start(r.Context(), "rpc."+req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()
	if m.auth {
		if authErr := s.requireAuth(r); authErr != nil {
			span.SetStatus(codes.Error, authErr.Message)
			return nil, authErr
		}
	}
	result, rpcErr := m.fn(ctx, req.Params)
	if rpcErr != nil {
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", rpcErr.Code))
		span.SetStatus(codes.Error, rpcErr.Message)
	}
	return result, rpcErr
}

// requireAuth checks the bearer token. It is a no-op when no token is
// configured.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return newError(http.StatusUnauthorized, codeUnauthorized, "missing Authorization header", nil)
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return newError(http.StatusUnauthorized, codeUnauthorized, "Authorization header must use Bearer scheme", nil)
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return newError(http.StatusUnauthorized, codeUnauthorized, "missing bearer token", nil)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		return newError(http.StatusUnauthorized, codeUnauthorized, "invalid RPC credentials", nil)
	}
	return nil
}

type requestIDKey struct{}

// requestID tags every request with an id, reusing the caller's when sent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// clientSource identifies the caller by remote IP. Forwarding headers are
// not trusted.
func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
