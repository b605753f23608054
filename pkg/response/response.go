package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response. Nil maps in meta are ignored; later maps
// override earlier keys.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	noStore(c)
	c.JSON(status, Envelope{Data: data, Meta: merge(meta)})
}

// List sends a collection with its size in meta.count.
func List(c *gin.Context, items interface{}, count int, meta ...map[string]interface{}) {
	JSON(c, http.StatusOK, items, append(meta, map[string]interface{}{"count": count})...)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
// Server side failures are attached to the gin context so the request logger
// can report the cause.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

func merge(meta []map[string]interface{}) map[string]interface{} {
	var out map[string]interface{}
	for _, m := range meta {
		if len(m) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]interface{}, len(m))
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
