package web

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
)

// ErrRouteMethod 声明的成员不是 func(*gin.Context) 方法。
var ErrRouteMethod = errors.New("web: invalid route method")

// Middleware 在路由方法之前执行。调用 c.Abort 可以终止请求。
type Middleware interface {
	Handle(c *gin.Context)
}

// RouteOptions 是 Route 声明的参数。直接传 "GET /users/:id" 等价于
// RouteOptions{Method: "GET", Path: "/users/:id"}。
type RouteOptions struct {
	Method string
	Path   string
	// Middleware 中的键在每次请求时从容器解析，必须实现 Middleware
	Middleware []di.Key
}

// Route 把控制器方法注册为 HTTP 路由：
//
//	type UserController struct {
//		Repo *UserRepo `di:""`
//	}
//
//	func (uc *UserController) Show(c *gin.Context) { ... }
//
//	func init() {
//		di.Class[UserController](web.Route.On("Show", "GET /users/:id"))
//	}
var Route = di.DefineDeclarationKind[*routeHandler]()

type routeHandler struct {
	di.Declaration
	Router    *Router        `di:""`
	Container *di.Container  `di:""`
	Logger    logging.Logger `di:"?"`

	opts RouteOptions
}

func parseRoute(options any) (RouteOptions, error) {
	var opts RouteOptions
	switch o := options.(type) {
	case string:
		fields := strings.Fields(o)
		switch len(fields) {
		case 1:
			opts = RouteOptions{Method: http.MethodGet, Path: fields[0]}
		case 2:
			opts = RouteOptions{Method: fields[0], Path: fields[1]}
		default:
			return opts, fmt.Errorf("web: invalid route %q", o)
		}
	case RouteOptions:
		opts = o
	case *RouteOptions:
		opts = *o
	default:
		return opts, fmt.Errorf("web: unsupported route options %T", options)
	}
	opts.Method = strings.ToUpper(opts.Method)
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if !strings.HasPrefix(opts.Path, "/") {
		return opts, fmt.Errorf("web: route path %q must start with '/'", opts.Path)
	}
	return opts, nil
}

func (h *routeHandler) OnCreate() error {
	opts, err := parseRoute(h.Options)
	if err != nil {
		return err
	}
	m := reflect.ValueOf(h.Instance).MethodByName(h.Member)
	if !m.IsValid() {
		return fmt.Errorf("%w: %v has no method %s", ErrRouteMethod, h.Class, h.Member)
	}
	fn, ok := m.Interface().(func(*gin.Context))
	if !ok {
		return fmt.Errorf("%w: %v.%s is %v", ErrRouteMethod, h.Class, h.Member, m.Type())
	}

	err = h.Router.Handle(opts.Method, opts.Path, func(c *gin.Context) {
		for _, key := range opts.Middleware {
			v, err := h.Container.Get(key)
			if err != nil {
				h.fail(c, key, err)
				return
			}
			mw, ok := v.(Middleware)
			if !ok {
				h.fail(c, key, fmt.Errorf("%T does not implement web.Middleware", v))
				return
			}
			mw.Handle(c)
			if c.IsAborted() {
				return
			}
		}
		fn(c)
	})
	if err != nil {
		return err
	}
	h.opts = opts
	return nil
}

func (h *routeHandler) OnDestroy() error {
	if h.opts.Path != "" {
		h.Router.Remove(h.opts.Method, h.opts.Path)
	}
	return nil
}

func (h *routeHandler) fail(c *gin.Context, key di.Key, err error) {
	if h.Logger != nil {
		h.Logger.Error("中间件解析失败", logging.F("middleware", key), logging.Err(err))
	}
	c.AbortWithStatus(http.StatusInternalServerError)
}
