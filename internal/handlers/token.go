package handlers

import (
	"errors"
	"net/http"

	"github.com/devicegate/devicegate/internal/middleware"
	"github.com/devicegate/devicegate/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	GrantTypeDeviceCode   = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeRefreshToken = "refresh_token"
)

type TokenHandler struct {
	flow *services.FlowService
}

func NewTokenHandler(flow *services.FlowService) *TokenHandler {
	return &TokenHandler{flow: flow}
}

// Token godoc
//
//	@Summary		Request access token
//	@Description	Exchange device code or refresh token for access token (RFC 8628 and RFC 6749)
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string																							true	"Grant type: 'urn:ietf:params:oauth:grant-type:device_code' or 'refresh_token'"
//	@Param			device_code		formData	string																							false	"Device code (required when grant_type=device_code)"
//	@Param			refresh_token	formData	string																							false	"Refresh token (required when grant_type=refresh_token)"
//	@Success		200				{object}	object{access_token=string,refresh_token=string,token_type=string,expires_in=int,scope=string}	"Token pair issued successfully"
//	@Failure		400				{object}	object{error=string,error_description=string}													"Invalid request (unsupported_grant_type, invalid_request, authorization_pending, invalid_grant)"
//	@Failure		500				{object}	object{error=string,error_description=string}													"Internal server error"
//	@Router			/oauth/token [post]
func (h *TokenHandler) Token(c *gin.Context) {
	grantType := c.PostForm("grant_type")

	switch grantType {
	case GrantTypeDeviceCode:
		h.handleDeviceCodeGrant(c)
	case GrantTypeRefreshToken:
		h.handleRefreshTokenGrant(c)
	case "":
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "grant_type is required",
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Supported grant types: device_code, refresh_token",
		})
	}
}

func (h *TokenHandler) handleDeviceCodeGrant(c *gin.Context) {
	deviceCode := c.PostForm("device_code")
	if deviceCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "device_code is required",
		})
		return
	}

	pair, err := h.flow.ExchangeDeviceCode(c.Request.Context(), deviceCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAuthorizationPending):
			// Expected while the user has not entered the code yet.
			// 400 per RFC 8628 §3.5, clients keep polling.
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "authorization_pending",
			})
		case errors.Is(err, services.ErrInvalidGrant):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_grant",
				"error_description": "Invalid or expired device code",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Token issuance failed",
			})
		}
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *TokenHandler) handleRefreshTokenGrant(c *gin.Context) {
	refreshToken := c.PostForm("refresh_token")
	if refreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "refresh_token is required",
		})
		return
	}

	pair, err := h.flow.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidGrant) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_grant",
				"error_description": "Invalid, expired or revoked refresh token",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Token refresh failed",
		})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// TokenInfo godoc
//
//	@Summary		Validate access token
//	@Description	Verify token validity and retrieve token information (RFC 7662 style introspection)
//	@Tags			OAuth
//	@Produce		json
//	@Security		BearerAuth
//	@Param			Authorization	header		string																		true	"Bearer token (format: 'Bearer <token>')"
//	@Success		200				{object}	object{active=bool,device_id=string,user_id=string,token_type=string,scope=string,iat=int,exp=int}	"Token is valid"
//	@Failure		401				{object}	object{error=string,error_description=string}								"Token is invalid or expired (missing_token, invalid_token)"
//	@Router			/oauth/tokeninfo [get]
func (h *TokenHandler) TokenInfo(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active":     true,
		"device_id":  claims.DeviceID,
		"user_id":    claims.UserID,
		"token_type": claims.TokenType,
		"scope":      claims.Scope,
		"iat":        claims.IssuedAt.Unix(),
		"exp":        claims.ExpiresAt.Unix(),
	})
}
