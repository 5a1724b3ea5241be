package handlers

import (
	"net/http"
	"strings"

	"smarthome_collector/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errListDevices = "failed to list devices"
	errGetDevice   = "failed to load device"
	errCommand     = "platform rejected the command"
	errOptional    = "failed to query platform"
)

// TurnOnRequest is the optional body of a turn-on command.
type TurnOnRequest struct {
	// Brightness on the 0-255 scale
	Brightness *int `json:"brightness,omitempty" example:"128"`
}

// TemperatureRequest sets a thermostat target.
type TemperatureRequest struct {
	Temperature *float64 `json:"temperature" binding:"required" example:"21.5"`
}

// HVACModeRequest sets a thermostat mode.
type HVACModeRequest struct {
	// Allowed: heat, cool, auto, off
	Mode string `json:"mode" binding:"required" example:"heat"`
}

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Param        domain  query  string  false  "Entity domain filter, e.g. light or sensor"
// @Success      200  {object}  service.DeviceList
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	domain := strings.TrimSpace(c.Query("domain"))
	list, err := h.services.ListDevices(c.Request.Context(), domain)
	if err != nil {
		h.respondError(c, err, errListDevices, "devices_list_failed", "domain", domain)
		return
	}
	if list.Devices == nil {
		list.Devices = []string{}
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Get device state
// @Tags         devices
// @Produce      json
// @Param        id  path  string  true  "Device id"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{id} [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	id := c.Param("id")
	st, err := h.services.GetDevice(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, errGetDevice, "device_get_failed", "device_id", id)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Turn device on
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path  string         true   "Device id"
// @Param        body  body  TurnOnRequest  false  "Optional brightness"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{id}/on [post]
// @Security     BearerAuth
func (h *Handler) turnOn(c *gin.Context) {
	var req TurnOnRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	if req.Brightness != nil && (*req.Brightness < 0 || *req.Brightness > 255) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "brightness must be within 0-255"})
		return
	}

	id := c.Param("id")
	err := h.services.TurnOn(c.Request.Context(), id, service.TurnOnParams{Brightness: req.Brightness})
	h.respondCommand(c, id, "turn_on", err)
}

// @Summary      Turn device off
// @Tags         devices
// @Produce      json
// @Param        id  path  string  true  "Device id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{id}/off [post]
// @Security     BearerAuth
func (h *Handler) turnOff(c *gin.Context) {
	id := c.Param("id")
	h.respondCommand(c, id, "turn_off", h.services.TurnOff(c.Request.Context(), id))
}

// @Summary      Set target temperature
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Device id"
// @Param        body  body  TemperatureRequest  true  "Target"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{id}/temperature [post]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	var req TemperatureRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	id := c.Param("id")
	h.respondCommand(c, id, "set_temperature", h.services.SetTemperature(c.Request.Context(), id, *req.Temperature))
}

// @Summary      Set HVAC mode
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path  string           true  "Device id"
// @Param        body  body  HVACModeRequest  true  "Mode"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices/{id}/hvac_mode [post]
// @Security     BearerAuth
func (h *Handler) setHVACMode(c *gin.Context) {
	var req HVACModeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	id := c.Param("id")
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	h.respondCommand(c, id, "set_hvac_mode", h.services.SetHVACMode(c.Request.Context(), id, mode))
}

func (h *Handler) respondCommand(c *gin.Context, id, action string, err error) {
	if err != nil {
		h.respondError(c, err, errCommand, "device_command_failed", "device_id", id, "action", action)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSent, "device_id": id, "action": action})
}

// @Summary      Optional platform capabilities
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/capabilities [get]
// @Security     BearerAuth
func (h *Handler) getCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platform":     h.services.Platform(),
		"capabilities": h.services.Capabilities(),
	})
}

// @Summary      List zones
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      501  {object}  map[string]string
// @Router       /api/v1/zones [get]
// @Security     BearerAuth
func (h *Handler) getZones(c *gin.Context) {
	zones, err := h.services.Zones(c.Request.Context())
	if err != nil {
		h.respondError(c, err, errOptional, "zones_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(zones), "zones": zones})
}

// @Summary      List flows
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      501  {object}  map[string]string
// @Router       /api/v1/flows [get]
// @Security     BearerAuth
func (h *Handler) getFlows(c *gin.Context) {
	flows, err := h.services.Flows(c.Request.Context())
	if err != nil {
		h.respondError(c, err, errOptional, "flows_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(flows), "flows": flows})
}

// @Summary      Trigger flow
// @Tags         devices
// @Produce      json
// @Param        id  path  string  true  "Flow id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      501  {object}  map[string]string
// @Router       /api/v1/flows/{id}/trigger [post]
// @Security     BearerAuth
func (h *Handler) triggerFlow(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.TriggerFlow(c.Request.Context(), id); err != nil {
		h.respondError(c, err, errOptional, "flow_trigger_failed", "flow_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusTriggered, "flow_id": id})
}
