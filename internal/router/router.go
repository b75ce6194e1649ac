package router

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/handler"
	"github.com/iliyamo/page-builder/internal/middleware"
	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/repository"
	"github.com/iliyamo/page-builder/internal/service"
	"github.com/iliyamo/page-builder/internal/storage"
)

// Prefix is the versioned API root.
const Prefix = "/api/v1"

// Deps carries everything Register wires.  Media, RateLimit, PageCache and
// BumpCache are optional.
type Deps struct {
	Service        *service.Service
	Users          repository.UserDirectory
	Media          storage.MediaStore
	MaxUploadBytes int64
	JWTSecret      string
	Timeout        time.Duration
	RateLimit      echo.MiddlewareFunc
	PageCache      echo.MiddlewareFunc
	BumpCache      echo.MiddlewareFunc
	Checks         map[string]handler.Pinger
}

// chain drops unset middleware.
func chain(ms ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(ms))
	for _, m := range ms {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Register maps every route on e.
func Register(e *echo.Echo, d Deps) {
	// Health check for load balancers; no authentication.
	e.GET("/healthz", handler.Health(d.Checks))

	api := e.Group(Prefix)

	// Authenticated caller acting on their own :userId.
	owner := chain(
		middleware.JWTAuth(d.JWTSecret),
		middleware.LoadUser(d.Users),
		middleware.RequireOwner("userId"),
		d.RateLimit,
		d.BumpCache,
	)
	// Authenticated caller, no user scoping.
	authed := chain(
		middleware.JWTAuth(d.JWTSecret),
		middleware.LoadUser(d.Users),
		d.RateLimit,
	)
	cached := chain(d.PageCache)

	registerBlocks(api, d, owner)
	registerPages(api, d, owner, cached)

	globals := handler.NewGlobalHandler(d.Service.Globals, d.Timeout)
	g := api.Group("/globals", owner...)
	g.GET("/get/:userId", globals.Get, cached...)
	g.DELETE("/delete/:userId", globals.Delete)

	// Anyone signed in can read the registry; only admins change it.
	meta := handler.NewMetadataHandler(d.Service.Metadata, d.Timeout)
	m := api.Group("/content-block", authed...)
	admin := middleware.RequireRole(model.RoleAdmin)
	m.GET("", meta.List)
	m.POST("/create", meta.Create, admin)
	m.PATCH("/edit/:blockId", meta.Update, admin)
	m.DELETE("/delete/:blockId", meta.Delete, admin)
	m.DELETE("/delete-all", meta.DeleteAll, admin)

	if d.Media != nil {
		media := handler.NewMediaHandler(d.Media, d.MaxUploadBytes, d.Timeout)
		api.POST("/audio/upload/:userId", media.Audio, owner...)
		api.POST("/image/upload/:userId", media.Image, owner...)
	}
}

// registerBlocks generates the create/edit/delete routes of every kind in
// the registry, plus the social-only routes.
func registerBlocks(api *echo.Group, d Deps, owner []echo.MiddlewareFunc) {
	for _, kind := range blocktype.All() {
		h := handler.NewBlockHandler(kind, d.Service.Blocks, d.Timeout)
		g := api.Group("/"+kind.Route, owner...)
		g.POST("/create/:userId/:pageId", h.Create)
		g.PATCH("/edit/:userId/:pageId/:blockId", h.Edit)
		if kind.IsGlobal() {
			g.PATCH("/edit/:userId", h.Edit)
		}
		g.DELETE("/delete/:userId/:pageId/:blockId", h.Delete)
	}

	social := handler.NewSocialHandler(d.Service.Blocks, d.Timeout)
	s := api.Group("/social", owner...)
	s.POST("/create/:userId", social.Accounts)
	s.POST("/update/:userId/:pageId", social.Link)
}

func registerPages(api *echo.Group, d Deps, owner, cached []echo.MiddlewareFunc) {
	pages := handler.NewPageHandler(d.Service.Pages, d.Service.Blocks, d.Timeout)

	// Published pages are readable without a token.
	api.GET("/page/web/:userId/:pageId", pages.GetPublic, chain(d.RateLimit, d.PageCache)...)

	p := api.Group("/page", owner...)
	p.POST("/create/:userId", pages.Create)
	p.GET("/all-pages/:userId", pages.List, cached...)
	p.GET("/:userId/:pageId", pages.Get, cached...)
	p.PUT("/:userId/:pageId", pages.Update)
	p.DELETE("/:userId/:pageId", pages.Delete)
	p.POST("/insert-global-block/:userId/:pageId", pages.InsertGlobal)
	p.POST("/page-reorder/:userId/:pageId", pages.Reorder)
}
