package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 100

	errProcess       = "failed to run automation"
	errCollect       = "collection cycle failed"
	errStats         = "failed to load collector stats"
	errSensorHistory = "failed to load readings"
)

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": statusOK}
	if h.services != nil && h.services.Devices != nil {
		resp["platform"] = h.services.Platform()
	}
	if h.services != nil && h.services.Collector != nil {
		resp["collector_running"] = h.services.Running()
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Dehumidifier status
// @Description  Current humidity, device state and the pending shutdown countdown. Never changes the countdown.
// @Tags         automation
// @Produce      json
// @Success      200  {object}  service.DehumidifierStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/automation/dehumidifier/status [get]
// @Security     BearerAuth
func (h *Handler) getDehumidifierStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Dehumidifier.Status(c.Request.Context()))
}

// @Summary      Run dehumidifier automation now
// @Description  Reads the sensors, applies the thresholds and sends the resulting commands.
// @Tags         automation
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "commands"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]interface{}  "commands, error"
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/automation/dehumidifier/process [post]
// @Security     BearerAuth
func (h *Handler) processDehumidifier(c *gin.Context) {
	cmds, err := h.services.Dehumidifier.Evaluate(c.Request.Context())
	if err != nil && cmds == nil {
		h.respondError(c, err, errProcess, "dehumidifier_process_failed")
		return
	}
	if err != nil {
		// commands were decided but at least one failed at the platform
		if h.log != nil {
			h.log.Errorw("dehumidifier_command_failed", "err", err)
		}
		c.JSON(statusFor(err), gin.H{"commands": cmds, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": cmds})
}

// @Summary      Collector stats
// @Tags         collector
// @Produce      json
// @Success      200  {object}  service.CollectorStats
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/collector/stats [get]
// @Security     BearerAuth
func (h *Handler) getCollectorStats(c *gin.Context) {
	st, err := h.services.Collector.Stats(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errStats, "collector_stats_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Run one collection cycle
// @Tags         collector
// @Produce      json
// @Success      200  {object}  service.CycleReport
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/collector/collect [post]
// @Security     BearerAuth
func (h *Handler) collectNow(c *gin.Context) {
	report, err := h.services.CollectOnce(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, statusFor(err), errCollect, "collector_manual_cycle_failed", err, "store_failures", report.StoreFailures)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary      Sensor history
// @Tags         collector
// @Produce      json
// @Param        sensor_id  path   string  true   "Sensor id"
// @Param        limit      query  int     false  "Max rows (default 100, max 500)"
// @Success      200  {object}  map[string]interface{}  "count, readings"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/readings/{sensor_id} [get]
// @Security     BearerAuth
func (h *Handler) getSensorHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'; use a positive integer"})
			return
		}
		limit = v
	}

	sensorID := c.Param("sensor_id")
	readings, err := h.services.History(c.Request.Context(), sensorID, limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errSensorHistory, "sensor_history_failed", err, "sensor_id", sensorID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(readings),
		"readings": readings,
	})
}
