package controllers

import (
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"tryonapi/tryon"
)

// SetupDevProxy builds the development forwarding server. Requests under
// /api/seedream are rewritten onto the provider path and forwarded with the
// Host header switched to the provider's; headers and body pass through.
func SetupDevProxy(origin *url.URL, providerPath string, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	isProxied := func(c echo.Context) bool {
		p := c.Request().URL.Path
		return p == tryon.DevProxyPath || strings.HasPrefix(p, tryon.DevProxyPath+"/")
	}

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isProxied(c) {
				return next(c)
			}
			req := c.Request()
			logger.Info("Proxying request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("target", origin.String()+providerPath+strings.TrimPrefix(req.URL.Path, tryon.DevProxyPath)))
			req.Host = origin.Host
			return next(c)
		}
	})
	e.Use(middleware.ProxyWithConfig(middleware.ProxyConfig{
		Skipper: func(c echo.Context) bool {
			return !isProxied(c)
		},
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: origin}}),
		Rewrite: map[string]string{
			"^" + tryon.DevProxyPath:        providerPath,
			"^" + tryon.DevProxyPath + "/*": providerPath + "/$1",
		},
	}))
	return e
}
