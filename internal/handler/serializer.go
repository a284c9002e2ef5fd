package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps request bodies read by bindJSON.
const maxBodyBytes = 1 << 20

// JSONSerializer is an echo.JSONSerializer backed by json-iterator.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i any) error {
	err := json.NewDecoder(io.LimitReader(c.Request().Body, maxBodyBytes)).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err)).SetInternal(err)
	}
	return nil
}

var errEmptyBody = errors.New("request body is empty")

// bindJSON decodes the request body into dst whatever the Content-Type.
// Clients of the catalog often post JSON without declaring it, which
// c.Bind would reject.
func bindJSON(c echo.Context, dst any) error {
	if c.Request().Body == nil || c.Request().ContentLength == 0 {
		return errEmptyBody
	}
	return c.Echo().JSONSerializer.Deserialize(c, dst)
}
