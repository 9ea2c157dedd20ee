package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/present/rest/presenter"
	"github.com/totegamma/starnet/internal/service"
	"github.com/totegamma/starnet/internal/usecase"
)

// EventStream feeds realtime subscribers.
type EventStream interface {
	Realtime(ctx context.Context, input <-chan []string, output chan<- domain.Event)
}

type Handler struct {
	config  domain.Config
	address string
	holon   *usecase.HolonUsecase
	runtime *service.Runtime
	events  EventStream
}

func NewHandler(
	config domain.Config,
	address string,
	holon *usecase.HolonUsecase,
	runtime *service.Runtime,
	events EventStream,
) *Handler {
	return &Handler{
		config:  config,
		address: address,
		holon:   holon,
		runtime: runtime,
		events:  events,
	}
}

const familyCtxKey = "family"

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/starnet", h.handleWellKnown)

	e.POST("/api/cosmic/ignite", h.handleIgnite)
	e.POST("/api/cosmic/extinguish", h.handleExtinguish)
	e.GET("/api/cosmic/status", h.handleStatus)
	e.GET("/api/realtime", h.handleRealtime)

	g := e.Group("/api/:family", h.resolveFamily, h.ensureIgnited)
	g.GET("", h.handleLoadAll)
	g.GET("/load-all-for-avatar", h.handleLoadAllForAvatar)
	g.GET("/load-from-path", h.handleLoadFromPath)
	g.GET("/load-from-published", h.handleLoadFromPublished)
	g.GET("/by-type/:type", h.handleLoadByType)
	g.GET("/by-parent/:parentId", h.handleLoadByParent)
	g.GET("/by-metadata", h.handleLoadByMetaData)
	g.GET("/network", h.handleNetwork)
	g.GET("/search", h.handleSearch)
	g.POST("/search", h.handleSearchAdvanced)
	g.POST("", h.handleCreate)
	g.POST("/create", h.handleCreate)
	g.GET("/:id", h.handleLoad)
	g.PUT("/:id", h.handleUpdate)
	g.PUT("/:id/edit", h.handleUpdate)
	g.DELETE("/:id", h.handleDelete)
	g.GET("/:id/versions", h.handleVersions)
	g.GET("/:id/versions/:version", h.handleLoadVersion)
	g.POST("/:id/publish", h.handlePublish)
	g.POST("/:id/unpublish", h.handleTransition(h.holon.Unpublish, "unpublished"))
	g.POST("/:id/republish", h.handleTransition(h.holon.Republish, "republished"))
	g.POST("/:id/activate", h.handleTransition(h.holon.Activate, "activated"))
	g.POST("/:id/deactivate", h.handleTransition(h.holon.Deactivate, "deactivated"))
	g.POST("/:id/download", h.handleDownload)
	g.POST("/:id/uninstall", h.handleUninstall)
	g.POST("/:id/clone", h.handleClone)
}

func (h *Handler) fail(c echo.Context, err error) error {
	return presenter.Error(c, err, h.config.VerboseErrors)
}

func (h *Handler) resolveFamily(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		family, err := domain.LookupFamily(c.Param("family"))
		if err != nil {
			return h.fail(c, err)
		}
		c.Set(familyCtxKey, family)
		return next(c)
	}
}

// ensureIgnited boots the runtime on the first holon request.
func (h *Handler) ensureIgnited(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := h.runtime.Ignite(c.Request().Context()); err != nil {
			return h.fail(c, err)
		}
		return next(c)
	}
}

func scope(c echo.Context) usecase.Scope {
	family, _ := c.Get(familyCtxKey).(domain.Family)
	avatarID, _ := c.Request().Context().Value(domain.AvatarIdCtxKey).(string)
	return usecase.Scope{Family: family, AvatarID: avatarID}
}

func parseVersion(raw string) (int, error) {
	if raw == "" {
		return domain.LatestVersion, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.Validation("invalid version %q", raw)
	}
	return v, nil
}

func parseBool(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Validation("invalid %s %q", name, raw)
	}
	return v, nil
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	families := make([]domain.FamilyInfo, 0)
	for _, f := range domain.Families() {
		families = append(families, domain.FamilyInfo{Name: f.Name, Title: f.Title, Subtypes: f.Subtypes})
	}

	wellknown := domain.WellKnown{
		Version:  "1.0",
		Domain:   h.config.FQDN,
		Address:  h.address,
		Families: families,
		Endpoints: map[string]domain.Endpoint{
			"net.starnet.holon.list": {
				Template: "/api/{family}",
				Method:   "GET",
				Query:    &[]string{"showAllVersions"},
			},
			"net.starnet.holon.load": {
				Template: "/api/{family}/{id}",
				Method:   "GET",
				Query:    &[]string{"version"},
			},
			"net.starnet.holon.versions": {
				Template: "/api/{family}/{id}/versions",
				Method:   "GET",
			},
			"net.starnet.holon.search": {
				Template: "/api/{family}/search",
				Method:   "GET",
				Query:    &[]string{"searchTerm", "searchOnlyForCurrentAvatar", "showAllVersions", "version"},
			},
			"net.starnet.holon.download": {
				Template: "/api/{family}/{id}/download",
				Method:   "POST",
			},
			"net.starnet.network": {
				Template: "/api/{family}/network",
				Method:   "GET",
			},
			"net.starnet.realtime": {
				Template: "/api/realtime",
				Method:   "GET",
			},
		},
	}
	return c.JSON(http.StatusOK, wellknown)
}

func (h *Handler) handleIgnite(c echo.Context) error {
	if err := h.runtime.Ignite(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, h.runtime.Status(), "STAR ignited.")
}

func (h *Handler) handleExtinguish(c echo.Context) error {
	if err := h.runtime.Extinguish(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, h.runtime.Status(), "STAR extinguished.")
}

func (h *Handler) handleStatus(c echo.Context) error {
	return presenter.OK(c, h.runtime.Status(), "")
}
