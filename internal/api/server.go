package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"OpenMCP-Arbitrum/internal/agent"
	"OpenMCP-Arbitrum/internal/auth"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/observability/metrics"
	"OpenMCP-Arbitrum/pkg/plugin"
)

const (
	actionsPath = "/api/v1/actions"
	walletPath  = "/api/v1/wallet"
	journalPath = "/api/v1/journal"

	defaultJournalLimit = 20
	maxRequestBody      = 1 << 20
)

// Server 负责暴露 REST 接口，供外部调用链上动作并查询调用记录。
type Server struct {
	addr    string
	runtime *agent.Runtime
	auth    *auth.Service
}

// Option 自定义 Server 行为。
type Option func(*Server)

// WithAuth 为业务接口启用 Bearer Token 认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, rt *agent.Runtime, opts ...Option) *Server {
	s := &Server{addr: addr, runtime: rt}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由，便于测试与嵌入。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(actionsPath, s.protect("list_actions", map[string][]string{
		"*": {auth.PermissionActionsRead},
	}, s.handleActions))
	mux.Handle(actionsPath+"/", s.protect("execute_action", map[string][]string{
		"*": {auth.PermissionActionsExecute},
	}, s.handleExecute))
	mux.Handle(walletPath, s.protect("wallet", map[string][]string{
		"*": {auth.PermissionWalletRead},
	}, s.handleWallet))
	mux.Handle(journalPath, s.protect("journal", map[string][]string{
		"*": {auth.PermissionJournalRead},
	}, s.handleJournal))
	mux.Handle("/metrics", instrument("metrics", metrics.Handler()))
	mux.Handle("/healthz", instrument("healthz", http.HandlerFunc(handleHealth)))
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	// 配置 HTTP 服务器。
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

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

func (s *Server) protect(name string, perms map[string][]string, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if s.auth.Enabled() {
		handler = s.auth.Middleware(auth.MiddlewareConfig{RequiredPermissions: perms, AuditEvent: name})(handler)
	}
	return instrument(name, handler)
}

// handleActions 列出已注册的动作及其可用状态。
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.runtime == nil {
		http.Error(w, "Runtime 未初始化", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.runtime.Actions()})
}

// handleExecute 执行 /api/v1/actions/{name} 指定的动作。
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.runtime == nil {
		http.Error(w, "Runtime 未初始化", http.StatusServiceUnavailable)
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, actionsPath+"/"), "/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "缺少动作名称", http.StatusNotFound)
		return
	}

	var req agent.Request
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "请求体解析失败", http.StatusBadRequest)
			return
		}
	}
	req.Action = name
	if req.Source == "" {
		req.Source = "api"
	}

	result, err := s.runtime.Execute(r.Context(), req)
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, result)
}

// handleWallet 返回 Provider 拼接出的钱包上下文。
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.runtime == nil {
		http.Error(w, "Runtime 未初始化", http.StatusServiceUnavailable)
		return
	}
	summary := s.runtime.ProviderContext(r.Context(), plugin.Message{Source: "api"})
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// handleJournal 返回最近的动作调用记录。
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.runtime == nil {
		http.Error(w, "Runtime 未初始化", http.StatusServiceUnavailable)
		return
	}
	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit 参数非法", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	entries, err := s.runtime.Journal(r.Context(), limit)
	if err != nil {
		http.Error(w, xerrors.UserMessage(err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor 将错误分类映射为 HTTP 状态码。
func statusFor(err error) int {
	if xerrors.CodeOf(err) == xerrors.CodeNotFound {
		return http.StatusNotFound
	}
	switch xerrors.CategoryOf(err) {
	case xerrors.CategoryInput, xerrors.CategoryResolution:
		return http.StatusUnprocessableEntity
	case xerrors.CategoryConfiguration:
		return http.StatusServiceUnavailable
	case xerrors.CategoryExternal, xerrors.CategoryVerification:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// instrument 记录每个接口的请求计数与耗时。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withContext(ctx context.Context, handler http.Handler) http.Handler {
	// 包装处理器以检查上下文状态。
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
