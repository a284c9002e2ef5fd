// Package handler holds the Echo handlers of the catalog API.  Handlers
// decode the request, call one repository operation and map its outcome to
// a status code and a JSON body.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a liveness endpoint for load balancers and monitoring.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
