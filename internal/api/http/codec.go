package http

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

const contentTypeJSON = "application/json; charset=utf-8"

var errEmptyBody = errors.New("empty request body")

// decodeJSON reads the whole request body into v.
func decodeJSON(c *gin.Context, v any) error {
	data, err := c.GetRawData()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	return sonic.ConfigStd.Unmarshal(data, v)
}

// writeJSON encodes v with sonic and writes it with status.
func writeJSON(c *gin.Context, status int, v any) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"kind":    "Internal",
			"message": "failed to encode response",
		}})
		return
	}
	c.Data(status, contentTypeJSON, data)
}
