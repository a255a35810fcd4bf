package handlers

import (
	"errors"
	"net/http"

	"github.com/devicegate/devicegate/internal/config"
	"github.com/devicegate/devicegate/internal/services"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	flow   *services.FlowService
	config *config.Config
}

func NewDeviceHandler(flow *services.FlowService, cfg *config.Config) *DeviceHandler {
	return &DeviceHandler{flow: flow, config: cfg}
}

// DeviceCodeRequest handles POST /oauth/device/code
// This is called by the registering client to start the device flow.
// The device secret is returned here and never again.
func (h *DeviceHandler) DeviceCodeRequest(c *gin.Context) {
	deviceName := c.PostForm("device_name")
	deviceType := c.PostForm("device_type")
	clientID := c.PostForm("client_id")
	scope := c.PostForm("scope")
	audience := c.PostForm("audience")

	if deviceName == "" {
		// Also try JSON body
		var req struct {
			DeviceName string `json:"device_name"`
			DeviceType string `json:"device_type"`
			ClientID   string `json:"client_id"`
			Scope      string `json:"scope"`
			Audience   string `json:"audience"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			deviceName = req.DeviceName
			deviceType = req.DeviceType
			clientID = req.ClientID
			scope = req.Scope
			audience = req.Audience
		}
	}

	if deviceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "device_name is required",
		})
		return
	}
	if deviceType == "" {
		deviceType = "device"
	}

	result, err := h.flow.Register(c.Request.Context(), services.RegisterInput{
		DeviceName: deviceName,
		DeviceType: deviceType,
		ClientID:   clientID,
		Scope:      scope,
		Audience:   audience,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":             "temporarily_unavailable",
			"error_description": "Device registration is currently unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_code":               result.Device.DeviceCode,
		"device_secret":             result.DeviceSecret,
		"user_code":                 services.FormatUserCode(result.Device.UserCode),
		"verification_uri":          result.VerificationURI,
		"verification_uri_complete": result.VerificationURIComplete,
		"expires_in":                result.ExpiresIn,
		"interval":                  result.Interval,
	})
}

// DeviceVerify handles POST /device/verify: a user enters the short code
// to bind the device to their identity. An explicit user_id takes
// precedence; otherwise the identity of the current session is used.
func (h *DeviceHandler) DeviceVerify(c *gin.Context) {
	userCode := c.PostForm("user_code")
	userID := c.PostForm("user_id")

	if userCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "user_code is required",
		})
		return
	}

	err := h.flow.Authorize(c.Request.Context(), userCode, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthenticated",
				"error_description": "Sign in before authorizing a device",
			})
		case errors.Is(err, services.ErrUserCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":             "not_found",
				"error_description": "Invalid or expired code",
			})
		case errors.Is(err, services.ErrAlreadyAuthorized):
			c.JSON(http.StatusConflict, gin.H{
				"error":             "already_authorized",
				"error_description": "This code has already been used",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Device authorization failed",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
