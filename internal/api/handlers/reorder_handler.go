// backend-go/internal/api/handlers/reorder_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/service"
)

const defaultServiceLevel = 0.95

// ScenarioDefaults are used when a request omits the scenario grid.
type ScenarioDefaults struct {
	LeadTimes     []int
	ServiceLevels []float64
	Windows       []int
}

type ReorderHandler struct {
	reorderService *service.ReorderService
	defaults       ScenarioDefaults
}

func NewReorderHandler(reorderService *service.ReorderService, defaults ScenarioDefaults) *ReorderHandler {
	if len(defaults.LeadTimes) == 0 {
		defaults.LeadTimes = []int{2, 4, 6}
	}
	if len(defaults.ServiceLevels) == 0 {
		defaults.ServiceLevels = []float64{0.90, 0.95, 0.99}
	}
	if len(defaults.Windows) == 0 {
		defaults.Windows = []int{2, 4, 8, 12}
	}
	return &ReorderHandler{reorderService: reorderService, defaults: defaults}
}

// GetSKUs returns every SKU with demand history
func (h *ReorderHandler) GetSKUs(c *gin.Context) {
	skus, err := h.reorderService.ListSKUs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"skus": skus, "count": len(skus)})
}

// GetForecast returns the weekly forecast and its prediction band
func (h *ReorderHandler) GetForecast(c *gin.Context) {
	horizon, ok := intQuery(c, "horizon", 0)
	if !ok {
		return
	}
	serviceLevel, ok := floatQuery(c, "service_level", defaultServiceLevel)
	if !ok {
		return
	}

	view, err := h.reorderService.GetForecast(c.Request.Context(), c.Param("sku"), horizon, serviceLevel)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetBacktest returns the rolling-origin accuracy of the forecaster
func (h *ReorderHandler) GetBacktest(c *gin.Context) {
	horizon, ok := intQuery(c, "horizon", 0)
	if !ok {
		return
	}
	window, ok := intQuery(c, "window", 0)
	if !ok {
		return
	}

	report, err := h.reorderService.Backtest(c.Request.Context(), c.Param("sku"), horizon, window)
	if err != nil && report != nil && domain.KindOf(err) == domain.KindUnevaluable {
		// the report still says why: no origin had a full horizon of actuals
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  err.Error(),
			"kind":   domain.KindUnevaluable,
			"report": report,
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// CompareWindows ranks candidate moving-average windows by backtest RMSE
func (h *ReorderHandler) CompareWindows(c *gin.Context) {
	horizon, ok := intQuery(c, "horizon", 0)
	if !ok {
		return
	}
	windows, ok := intListQuery(c, "windows", h.defaults.Windows)
	if !ok {
		return
	}

	reports, err := h.reorderService.CompareWindows(c.Request.Context(), c.Param("sku"), horizon, windows)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// GetPolicy returns one reorder decision
func (h *ReorderHandler) GetPolicy(c *gin.Context) {
	sku := c.Param("sku")
	leadTime, ok := intQuery(c, "lead_time", 0)
	if !ok {
		return
	}
	if leadTime == 0 {
		badRequest(c, "lead_time is required")
		return
	}
	serviceLevel, ok := floatQuery(c, "service_level", defaultServiceLevel)
	if !ok {
		return
	}
	onHand, ok := h.onHand(c, sku)
	if !ok {
		return
	}

	view, err := h.reorderService.Recommend(c.Request.Context(), sku, leadTime, serviceLevel, onHand)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetScenarios returns the decision for every lead time and service level pair
func (h *ReorderHandler) GetScenarios(c *gin.Context) {
	sku := c.Param("sku")
	leadTimes, ok := intListQuery(c, "lead_times", h.defaults.LeadTimes)
	if !ok {
		return
	}
	serviceLevels, ok := floatListQuery(c, "service_levels", h.defaults.ServiceLevels)
	if !ok {
		return
	}
	onHand, ok := h.onHand(c, sku)
	if !ok {
		return
	}

	decisions, err := h.reorderService.Sweep(c.Request.Context(), sku, leadTimes, serviceLevels, onHand)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sku": sku, "scenarios": decisions})
}

// GetDecisions returns the decisions stored by the most recent batch run
func (h *ReorderHandler) GetDecisions(c *gin.Context) {
	decisions, err := h.reorderService.LatestDecisions(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(decisions) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stored decisions for " + c.Param("sku"), "kind": domain.KindNotFound})
		return
	}

	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

// UploadDemand imports a weekly demand CSV or XLSX sent as the "file" form field
func (h *ReorderHandler) UploadDemand(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided")
		return
	}

	f, err := file.Open()
	if err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("failed to open uploaded file")
		badRequest(c, "unreadable file %s", file.Filename)
		return
	}
	defer f.Close()

	result, err := h.reorderService.ImportDemand(c.Request.Context(), file.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("filename", file.Filename).Int("imported", result.Imported).Int("rejected", len(result.Rejected)).Msg("demand imported")
	c.JSON(http.StatusOK, result)
}

// UploadOnHand imports an on-hand CSV or XLSX sent as the "file" form field
func (h *ReorderHandler) UploadOnHand(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided")
		return
	}

	f, err := file.Open()
	if err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("failed to open uploaded file")
		badRequest(c, "unreadable file %s", file.Filename)
		return
	}
	defer f.Close()

	count, err := h.reorderService.ImportOnHand(c.Request.Context(), file.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": count})
}

// onHand reads the on_hand query parameter, falling back to the stored quantity.
func (h *ReorderHandler) onHand(c *gin.Context, sku string) (float64, bool) {
	if c.Query("on_hand") != "" {
		return floatQuery(c, "on_hand", 0)
	}

	qty, found, err := h.reorderService.OnHand(c.Request.Context(), sku)
	if err != nil {
		writeError(c, err)
		return 0, false
	}
	if !found {
		badRequest(c, "on_hand is required: no stored quantity for %s", sku)
		return 0, false
	}
	return qty, true
}
