package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/pipeline"
)

// RunHandler triggers batch recommendation runs over the stored demand.
type RunHandler struct {
	orchestrator *pipeline.Orchestrator
	source       pipeline.DemandSource

	mu      sync.Mutex
	running bool
}

func NewRunHandler(orchestrator *pipeline.Orchestrator, source pipeline.DemandSource) *RunHandler {
	return &RunHandler{orchestrator: orchestrator, source: source}
}

// StartRun runs the pipeline synchronously and returns the run summary.
// Only one run executes at a time.
func (h *RunHandler) StartRun(c *gin.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	result, err := h.orchestrator.Run(c.Request.Context(), h.source)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":        result.Run,
		"status":     result.Status,
		"exclusions": result.ExclusionsByReason(),
	})
}
