package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ChainPilot/internal/agent"
	"ChainPilot/internal/observability/metrics"
	"ChainPilot/internal/session"
	"ChainPilot/pkg/logger"
)

// Chatter 是 API 层需要的控制循环入口。
type Chatter interface {
	Run(ctx context.Context, sess *session.Session, req agent.Request) (string, error)
}

// ChatRequest 是对话接口的请求体。
type ChatRequest struct {
	Input      string `json:"input"`
	Credential string `json:"credential,omitempty"`
}

// ChatResponse 是对话接口的响应体。
type ChatResponse struct {
	Response string `json:"response"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr  string
	agent Chatter
	log   *slog.Logger
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, chatter Chatter) *Server {
	return &Server{addr: addr, agent: chatter, log: logger.Named("api")}
}

// Handler 返回完整路由，便于测试直接挂到 httptest 上。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/chat", observe("chat", http.HandlerFunc(s.handleChat)))
	mux.Handle("/healthz", observe("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "控制循环未初始化")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "input 不能为空")
		return
	}

	// 每个请求独享一个全新会话，凭证不跨请求保留。
	sess := session.New()
	answer, err := s.agent.Run(r.Context(), sess, agent.Request{
		Input:      req.Input,
		Credential: req.Credential,
	})
	if err != nil {
		s.log.Error("对话处理失败", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ChatResponse{Response: answer})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: message})
}

// observe 包装处理器，记录请求量与时延指标。
func observe(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
