package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocrud/decor/logging"
)

// ServerOptions Web 主机选项
type ServerOptions struct {
	Addr              string        `json:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
}

// Host 是运行 Router 的托管服务
type Host struct {
	router  *Router
	options ServerOptions
	logger  logging.Logger

	mu     sync.Mutex
	server *http.Server
	addr   string
	ready  chan struct{}
}

// NewHost 创建 Web 主机
func NewHost(router *Router, options ServerOptions, logger logging.Logger) *Host {
	if options.Addr == "" {
		options.Addr = ":8080"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Host{
		router:  router,
		options: options,
		logger:  logger.WithCategory("web"),
		ready:   make(chan struct{}),
	}
}

func (h *Host) Name() string { return "web" }

// Ready 在主机开始监听后关闭
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Address 返回实际监听地址，仅在 Ready 之后有效
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Start 监听并处理请求，阻塞直到 Stop
func (h *Host) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.options.Addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", h.options.Addr, err)
	}

	h.router.seal()
	server := &http.Server{
		Handler:           h.router,
		ReadHeaderTimeout: h.options.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	h.mu.Lock()
	h.server = server
	h.addr = ln.Addr().String()
	h.mu.Unlock()
	close(h.ready)

	h.logger.Info("Web 主机已启动", logging.F("address", ln.Addr().String()))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	server := h.server
	h.mu.Unlock()
	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		h.logger.Error("Web 主机关闭失败", logging.Err(err))
		return err
	}
	h.logger.Info("Web 主机已停止")
	return nil
}
