package rest

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/present/rest/presenter"
	"github.com/totegamma/starnet/internal/usecase"
)

type downloadRequest struct {
	Version      int    `json:"version"`
	DownloadPath string `json:"downloadPath"`
	ReInstall    bool   `json:"reInstall"`
}

type cloneRequest struct {
	NewName string `json:"newName"`
}

func (h *Handler) handleLoadAll(c echo.Context) error {
	s := scope(c)
	showAll, err := parseBool(c.QueryParam("showAllVersions"), "showAllVersions")
	if err != nil {
		return h.fail(c, err)
	}

	list, err := h.holon.LoadAll(c.Request().Context(), s, "", showAll)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, list, fmt.Sprintf("%d %s(s) loaded.", len(list), s.Family.Title))
}

func (h *Handler) handleLoadAllForAvatar(c echo.Context) error {
	s := scope(c)
	showAll, err := parseBool(c.QueryParam("showAllVersions"), "showAllVersions")
	if err != nil {
		return h.fail(c, err)
	}
	version, err := parseVersion(c.QueryParam("version"))
	if err != nil {
		return h.fail(c, err)
	}

	list, err := h.holon.LoadAllForAvatar(c.Request().Context(), s, showAll, version)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, list, fmt.Sprintf("%d %s(s) loaded.", len(list), s.Family.Title))
}

func (h *Handler) handleLoadFromPath(c echo.Context) error {
	s := scope(c)
	path := c.QueryParam("path")
	if path == "" {
		return presenter.BadRequestMessage(c, "path parameter is required")
	}

	holon, err := h.holon.LoadFromPath(c.Request().Context(), s, path)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, holon, s.Family.Title+" loaded.")
}

func (h *Handler) handleLoadFromPublished(c echo.Context) error {
	s := scope(c)
	path := c.QueryParam("publishedFilePath")
	if path == "" {
		return presenter.BadRequestMessage(c, "publishedFilePath parameter is required")
	}

	holon, err := h.holon.LoadFromPublished(c.Request().Context(), s, path)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, holon, s.Family.Title+" loaded.")
}

func (h *Handler) handleLoadByType(c echo.Context) error {
	s := scope(c)
	showAll, err := parseBool(c.QueryParam("showAllVersions"), "showAllVersions")
	if err != nil {
		return h.fail(c, err)
	}

	list, err := h.holon.LoadAll(c.Request().Context(), s, c.Param("type"), showAll)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, list, fmt.Sprintf("%d %s(s) loaded.", len(list), s.Family.Title))
}

func (h *Handler) handleLoadByParent(c echo.Context) error {
	s := scope(c)
	list, err := h.holon.LoadByParent(c.Request().Context(), s, c.Param("parentId"))
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, list, fmt.Sprintf("%d %s(s) loaded.", len(list), s.Family.Title))
}

func (h *Handler) handleLoadByMetaData(c echo.Context) error {
	s := scope(c)
	key := c.QueryParam("key")
	if key == "" {
		return presenter.BadRequestMessage(c, "key parameter is required")
	}

	list, err := h.holon.LoadByMetaData(c.Request().Context(), s, key, c.QueryParam("value"))
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, list, fmt.Sprintf("%d %s(s) loaded.", len(list), s.Family.Title))
}

func (h *Handler) handleNetwork(c echo.Context) error {
	s := scope(c)
	entries, err := h.holon.Network(c.Request().Context(), s)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, entries, fmt.Sprintf("%d %s(s) found on STARNET.", len(entries), s.Family.Title))
}

func (h *Handler) handleSearch(c echo.Context) error {
	s := scope(c)

	scoped, err := parseBool(c.QueryParam("searchOnlyForCurrentAvatar"), "searchOnlyForCurrentAvatar")
	if err != nil {
		return h.fail(c, err)
	}
	showAll, err := parseBool(c.QueryParam("showAllVersions"), "showAllVersions")
	if err != nil {
		return h.fail(c, err)
	}
	version, err := parseVersion(c.QueryParam("version"))
	if err != nil {
		return h.fail(c, err)
	}

	params := domain.SearchParams{
		Term:            c.QueryParam("searchTerm"),
		MatchMode:       domain.MatchMode(c.QueryParam("matchMode")),
		ScopeToOwner:    scoped,
		ShowAllVersions: showAll,
		Version:         version,
	}
	return h.search(c, s, params)
}

func (h *Handler) handleSearchAdvanced(c echo.Context) error {
	var params domain.SearchParams
	if err := c.Bind(&params); err != nil {
		return presenter.BadRequest(c, err)
	}
	return h.search(c, scope(c), params)
}

func (h *Handler) search(c echo.Context, s usecase.Scope, params domain.SearchParams) error {
	list, err := h.holon.Search(c.Request().Context(), s, params)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, list, fmt.Sprintf("%d %s(s) found.", len(list), s.Family.Title))
}

func (h *Handler) handleCreate(c echo.Context) error {
	s := scope(c)
	var input usecase.CreateInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}

	holon, err := h.holon.Create(c.Request().Context(), s, input)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, holon, s.Family.Title+" created.")
}

func (h *Handler) handleLoad(c echo.Context) error {
	version, err := parseVersion(c.QueryParam("version"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.load(c, version)
}

func (h *Handler) handleLoadVersion(c echo.Context) error {
	version, err := parseVersion(c.Param("version"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.load(c, version)
}

func (h *Handler) load(c echo.Context, version int) error {
	s := scope(c)
	holon, err := h.holon.Load(c.Request().Context(), s, c.Param("id"), version)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, holon, s.Family.Title+" loaded.")
}

func (h *Handler) handleUpdate(c echo.Context) error {
	s := scope(c)
	var input domain.Holon
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}
	input.ID = c.Param("id")

	holon, err := h.holon.Update(c.Request().Context(), s, input)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, holon, fmt.Sprintf("%s saved as version %d.", s.Family.Title, holon.Version))
}

func (h *Handler) handleDelete(c echo.Context) error {
	s := scope(c)
	version, err := parseVersion(c.QueryParam("version"))
	if err != nil {
		return h.fail(c, err)
	}

	deleted, err := h.holon.Delete(c.Request().Context(), s, c.Param("id"), version)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, deleted, s.Family.Title+" deleted.")
}

func (h *Handler) handleVersions(c echo.Context) error {
	s := scope(c)
	list, err := h.holon.LoadVersions(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, list, fmt.Sprintf("%d version(s) loaded.", len(list)))
}

func (h *Handler) handlePublish(c echo.Context) error {
	s := scope(c)
	var opts domain.PublishOptions
	if err := c.Bind(&opts); err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.holon.Publish(c.Request().Context(), s, c.Param("id"), opts)
	if err != nil {
		return h.fail(c, err)
	}

	message := fmt.Sprintf("%s published as version %d.", s.Family.Title, result.Holon.Version)
	if result.Partial {
		message = fmt.Sprintf("%s published as version %d with warnings.", s.Family.Title, result.Holon.Version)
	}
	return presenter.OK(c, result, message)
}

type transitionFunc func(ctx context.Context, s usecase.Scope, id string, version int) (domain.Holon, error)

func (h *Handler) handleTransition(op transitionFunc, verb string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := scope(c)
		version, err := parseVersion(c.QueryParam("version"))
		if err != nil {
			return h.fail(c, err)
		}

		holon, err := op(c.Request().Context(), s, c.Param("id"), version)
		if err != nil {
			return h.fail(c, err)
		}
		return presenter.OK(c, holon, fmt.Sprintf("%s %s.", s.Family.Title, verb))
	}
}

func (h *Handler) handleDownload(c echo.Context) error {
	s := scope(c)
	var req downloadRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Version < 0 {
		return h.fail(c, domain.Validation("invalid version %d", req.Version))
	}

	result, err := h.holon.Download(c.Request().Context(), s, c.Param("id"), req.Version, req.DownloadPath, req.ReInstall)
	if err != nil {
		return h.fail(c, err)
	}

	message := s.Family.Title + " downloaded and installed."
	if result.Skipped {
		message = s.Family.Title + " is already installed."
	}
	return presenter.OK(c, result, message)
}

func (h *Handler) handleUninstall(c echo.Context) error {
	s := scope(c)
	version, err := parseVersion(c.QueryParam("version"))
	if err != nil {
		return h.fail(c, err)
	}

	holon, err := h.holon.Uninstall(c.Request().Context(), s, c.Param("id"), version)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, holon, s.Family.Title+" uninstalled.")
}

func (h *Handler) handleClone(c echo.Context) error {
	s := scope(c)
	var req cloneRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	holon, err := h.holon.Clone(c.Request().Context(), s, c.Param("id"), req.NewName)
	if err != nil {
		return h.fail(c, err)
	}
	return presenter.OK(c, holon, s.Family.Title+" cloned.")
}
