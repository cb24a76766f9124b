package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ok writes {"success": true, "data": data} merged with extra fields.
func ok(c *gin.Context, data any, extra ...gin.H) {
	body := gin.H{"success": true, "data": data}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

// fail writes {"success": false, "message": message}.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// failError writes the legacy {"error": message} shape.
func failError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// paramID parses the :id path parameter, writing a 400 when it is not a
// positive integer.
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent or malformed
// values yield def.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
