package web

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/decor/logging"
)

// ErrRouterSealed 主机启动后注册新的 method+path。
var ErrRouterSealed = errors.New("web: router is serving, new routes must be registered before start")

// Router 持有 gin 引擎和当前生效的路由表
//
// gin 不支持删除路由，所以每个 method+path 只向引擎注册一次分发函数，
// 分发时再查路由表。路由被移除后请求返回 404。
// 新的 method+path 必须在主机启动前注册，启动后只能替换或移除已有路由。
type Router struct {
	engine *gin.Engine
	logger logging.Logger

	mu     sync.RWMutex
	routes map[string]gin.HandlerFunc
	sealed bool
}

// NewRouter 创建路由器
func NewRouter(logger logging.Logger, middleware ...gin.HandlerFunc) *Router {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware...)
	return &Router{
		engine: engine,
		logger: logger.WithCategory("web"),
		routes: make(map[string]gin.HandlerFunc),
	}
}

func routeID(method, path string) string {
	return method + " " + path
}

// Handle 注册或替换 method+path 的处理函数
func (r *Router) Handle(method, path string, handler gin.HandlerFunc) error {
	id := routeID(method, path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.routes[id]; known {
		r.routes[id] = handler
		r.logger.Debug("替换路由", logging.F("route", id))
		return nil
	}
	if r.sealed {
		return fmt.Errorf("%w: %s", ErrRouterSealed, id)
	}
	if err := r.mount(method, path, id); err != nil {
		return err
	}
	r.routes[id] = handler
	r.logger.Debug("注册路由", logging.F("route", id))
	return nil
}

// seal 之后拒绝新的 method+path
func (r *Router) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Remove 移除 method+path 的处理函数
func (r *Router) Remove(method, path string) {
	id := routeID(method, path)
	r.mu.Lock()
	if _, ok := r.routes[id]; ok {
		r.routes[id] = nil
	}
	r.mu.Unlock()
	r.logger.Debug("移除路由", logging.F("route", id))
}

// Routes 返回当前生效的路由
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, h := range r.routes {
		if h != nil {
			out = append(out, id)
		}
	}
	return out
}

// mount 向 gin 注册分发函数，gin 对冲突路由的 panic 转为错误
func (r *Router) mount(method, path, id string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("web: failed to register route %s: %v", id, p)
		}
	}()
	r.engine.Handle(method, path, func(c *gin.Context) {
		r.mu.RLock()
		h := r.routes[id]
		r.mu.RUnlock()
		if h == nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		h(c)
	})
	return nil
}

// Engine 返回 gin 引擎，用于注册不经过声明的路由，同样只能在启动前注册
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// ServeHTTP 实现 http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}
