package httpformat

import (
	"net/http"
	"strings"

	"github.com/yeshanjun/pollux/internal/apierr"
	"github.com/gin-gonic/gin"
)

// DetectFromContext determines the error format based on the gin context path.
func DetectFromContext(c *gin.Context) apierr.Format {
	if c == nil {
		return apierr.FormatOpenAI
	}
	if path := c.FullPath(); path != "" {
		return DetectFromPath(path)
	}
	return DetectFromRequest(c.Request)
}

// DetectFromRequest determines the error format using an HTTP request.
func DetectFromRequest(r *http.Request) apierr.Format {
	if r == nil || r.URL == nil {
		return apierr.FormatOpenAI
	}
	return DetectFromPath(r.URL.Path)
}

// DetectFromPath determines the error format based on a raw path string.
func DetectFromPath(path string) apierr.Format {
	path = strings.ToLower(path)
	if strings.Contains(path, "/v1beta/") ||
		strings.Contains(path, ":generatecontent") ||
		strings.Contains(path, ":streamgeneratecontent") ||
		strings.Contains(path, "/v1internal/") {
		return apierr.FormatGemini
	}
	return apierr.FormatOpenAI
}
