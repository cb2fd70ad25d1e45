package httpserver

import (
	"net/http"
	"strconv"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/transport"
	"github.com/labstack/echo/v4"
)

func idParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func (h *AuthHTTP) ListRoles(c echo.Context) error {
	roles, err := h.Svc.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *AuthHTTP) GetRole(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	role, err := h.Svc.GetRole(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

func (h *AuthHTTP) CreateRole(c echo.Context) error {
	var req transport.RoleRequest
	if err := c.Bind(&req); err != nil {
		return badBody()
	}
	role, err := h.Svc.CreateRole(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, role)
}

func (h *AuthHTTP) UpdateRole(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req transport.RoleRequest
	if err := c.Bind(&req); err != nil {
		return badBody()
	}
	role, err := h.Svc.UpdateRole(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

func (h *AuthHTTP) AssignPermissions(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req transport.AssignPermissionsRequest
	if err := c.Bind(&req); err != nil {
		return badBody()
	}
	role, err := h.Svc.AssignPermissions(c.Request().Context(), id, req.PermissionCodes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

func (h *AuthHTTP) ListPermissions(c echo.Context) error {
	perms, err := h.Svc.ListPermissions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perms)
}

func (h *AuthHTTP) CreatePermission(c echo.Context) error {
	var req transport.PermissionRequest
	if err := c.Bind(&req); err != nil {
		return badBody()
	}
	perm, err := h.Svc.CreatePermission(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, perm)
}

func (h *AuthHTTP) AssignUserRoles(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req transport.AssignRolesRequest
	if err := c.Bind(&req); err != nil {
		return badBody()
	}
	profile, err := h.Svc.AssignRolesToUser(c.Request().Context(), id, req.RoleCodes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.MeResponse{User: *profile})
}
