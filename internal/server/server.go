// Package server exposes the profiler's self-metrics and run status over
// HTTP while a profiled command runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/run-profiler/pkg/logger"
	"github.com/run-profiler/pkg/store"
)

const defaultShutdownTimeout = 5 * time.Second

// RunStatus 是 /status 端点的数据来源，*profiler.Orchestrator 满足该接口
type RunStatus interface {
	RunID() string
	Running() bool
	Store() *store.SampleStore
}

// StatusResponse /status 返回体
type StatusResponse struct {
	RunID   string `json:"run_id"`
	Running bool   `json:"running"`
	Points  int    `json:"points"`
}

// Server HTTP服务实例
type Server struct {
	addr     string
	logger   *logger.Logger
	server   *http.Server
	registry prometheus.Gatherer
	status   RunStatus
	mux      *customMux

	mu       sync.Mutex
	listener net.Listener
}

// statusWriter 包装ResponseWriter，捕获状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获状态码
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// customMux 记录已注册路由，便于启动日志输出
type customMux struct {
	http.ServeMux
	routes []string
	mu     sync.Mutex
}

// Handle 注册路由时记录路径
func (m *customMux) Handle(pattern string, handler http.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, pattern)
	m.ServeMux.Handle(pattern, handler)
}

// HandleFunc 同 Handle
func (m *customMux) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	m.Handle(pattern, http.HandlerFunc(handler))
}

// NewHTTPServer 创建HTTP服务实例；status 可以为 nil
func NewHTTPServer(addr string, log *logger.Logger, registry prometheus.Gatherer, status RunStatus) *Server {
	if log == nil {
		log = logger.Named("http")
	}
	srv := &Server{
		addr:     addr,
		logger:   log,
		registry: registry,
		status:   status,
		mux:      &customMux{},
	}
	srv.registerEndpoints()
	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.logMiddleware(srv.mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return srv
}

// Handler 返回带日志中间件的根 handler
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Routes 已注册的路由
func (s *Server) Routes() []string {
	s.mux.mu.Lock()
	defer s.mux.mu.Unlock()
	return append([]string(nil), s.mux.routes...)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) registerEndpoints() {
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>run-profiler</title></head>
<body>
	<h1>run-profiler</h1>
	<a href="/status">/status - run status</a><br>
	<a href="/metrics">/metrics - Prometheus metrics</a><br>
	<a href="/health">/health - health check</a>
</body>
</html>
`)
	})

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(s.logger),
	}))

	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s.mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		var resp StatusResponse
		if s.status != nil {
			resp.RunID = s.status.RunID()
			resp.Running = s.status.Running()
			if st := s.status.Store(); st != nil {
				resp.Points = st.Len()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Warn("encode status failed", zap.Error(err))
		}
	})
}

// Start 监听端口并在后台提供服务（非阻塞）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		zap.String("listen_addr", ln.Addr().String()),
		zap.Strings("handle_funcs", s.Routes()),
	)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown 优雅关闭HTTP服务
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded")
			return nil
		}
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	s.logger.Info("HTTP server shutdown successfully")
	return nil
}
