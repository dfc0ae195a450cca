package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// statusFor maps an error class to the HTTP status returned for it.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidParameter:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientHistory, domain.KindUnevaluable, domain.KindUndefinedUncertainty:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		message = "internal error"
	}

	c.JSON(status, gin.H{"error": message, "kind": kind})
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": fmt.Sprintf(format, args...),
		"kind":  domain.KindInvalidParameter,
	})
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "%s must be an integer, got %q", name, raw)
		return 0, false
	}
	return v, true
}

func floatQuery(c *gin.Context, name string, fallback float64) (float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(c, "%s must be a number, got %q", name, raw)
		return 0, false
	}
	return v, true
}

func intListQuery(c *gin.Context, name string, fallback []int) ([]int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			badRequest(c, "%s must be a comma separated list of integers, got %q", name, raw)
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func floatListQuery(c *gin.Context, name string, fallback []float64) ([]float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			badRequest(c, "%s must be a comma separated list of numbers, got %q", name, raw)
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
