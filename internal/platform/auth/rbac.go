package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff roles known to the core. Role assignment and permission management
// are owned by the identity layer; the core only gates on role names.
const (
	RoleAdmin             = "admin"
	RoleReception         = "reception"
	RoleDoctor            = "doctor"
	RoleNurse             = "nurse"
	RolePharmacist        = "pharmacist"
	RoleInventoryApprover = "inventory_approver"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
