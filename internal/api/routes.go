package api

import (
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/lighthouse-health/exposure-relay/internal/ratelimit"
	"github.com/lighthouse-health/exposure-relay/internal/report"
	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

// APIHandler is the C10 Callable API: six authenticated entry points
// producing side effects via the Report Processor (C9), fronted by
// Firebase ID-token auth and the product rate limiter (C5).
type APIHandler struct {
	processor  *report.Processor
	limiter    *ratelimit.Limiter
	authClient *auth.Client
}

// SetupRouter wires the six callables behind ID-token auth and the
// teacher's per-IP token bucket (internal/api/ratelimit.go), which
// guards the HTTP layer regardless of caller identity.
func SetupRouter(processor *report.Processor, limiter *ratelimit.Limiter, authClient *auth.Client) *gin.Engine {
	r := gin.Default()

	handler := &APIHandler{processor: processor, limiter: limiter, authClient: authClient}

	r.GET("/healthz", handler.handleHealth)

	v1 := r.Group("/v1")
	v1.Use(AuthMiddleware(authClient))
	v1.Use(NewRateLimiter(60, 10).Middleware())
	{
		v1.POST("/reportPositiveTest", handler.handleReportPositiveTest)
		v1.POST("/reportNegativeTest", handler.handleReportNegativeTest)
		v1.POST("/getChainLinkInfo", handler.handleGetChainLinkInfo)
		v1.POST("/deleteExposureReport", handler.handleDeleteExposureReport)
		v1.POST("/recoverAccount", handler.handleRecoverAccount)
		v1.POST("/exportUserData", handler.handleExportUserData)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError renders the {code, message} shape from spec.md §6.
func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
}

// httpStatusFor maps the platform error codes to HTTP status.
func httpStatusFor(code store.Code) int {
	switch code {
	case store.CodeUnauthenticated:
		return http.StatusUnauthorized
	case store.CodeInvalidArgument:
		return http.StatusBadRequest
	case store.CodeResourceExhausted:
		return http.StatusTooManyRequests
	case store.CodePermissionDenied:
		return http.StatusForbidden
	case store.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeStoreError(c *gin.Context, err error) {
	code := store.AsCode(err)
	writeError(c, httpStatusFor(code), string(code), err.Error())
}

func (h *APIHandler) enforceLimit(c *gin.Context, uid string, op models.OperationKind) bool {
	if h.limiter.Allow(c.Request.Context(), uid, op, time.Now().UnixMilli()) {
		return true
	}
	writeError(c, http.StatusTooManyRequests, "resource-exhausted", "rate limit exceeded for this operation")
	return false
}

type reportPositiveTestRequest struct {
	STITypes     []string `json:"stiTypes"`
	TestDate     int64    `json:"testDate"`
	PrivacyLevel string   `json:"privacyLevel"`
}

func (h *APIHandler) handleReportPositiveTest(c *gin.Context) {
	uid := callerUID(c)
	var req reportPositiveTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid-argument", "malformed request body")
		return
	}
	if !h.enforceLimit(c, uid, models.OpPositiveReport) {
		return
	}

	privacy := models.PrivacyLevel(req.PrivacyLevel)
	if privacy == "" {
		privacy = models.PrivacyFull
	}
	now := time.Now().UnixMilli()

	rep, err := h.processor.CreatePositiveReport(c.Request.Context(), uid, req.STITypes, req.TestDate, privacy, now)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	resp := gin.H{"reportId": rep.ID}
	if rep.LinkedReportID != "" {
		resp["linkedReportId"] = rep.LinkedReportID
	}
	c.JSON(http.StatusOK, resp)
}

type reportNegativeTestRequest struct {
	STIType        string `json:"stiType"`
	NotificationID string `json:"notificationId"`
}

func (h *APIHandler) handleReportNegativeTest(c *gin.Context) {
	uid := callerUID(c)
	var req reportNegativeTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid-argument", "malformed request body")
		return
	}
	if !h.enforceLimit(c, uid, models.OpNegativeTest) {
		return
	}

	now := time.Now().UnixMilli()
	rep, err := h.processor.CreateNegativeReport(c.Request.Context(), uid, req.STIType, req.NotificationID, now)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportId": rep.ID})
}

type getChainLinkInfoRequest struct {
	STIType string `json:"stiType"`
}

func (h *APIHandler) handleGetChainLinkInfo(c *gin.Context) {
	uid := callerUID(c)
	var req getChainLinkInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid-argument", "malformed request body")
		return
	}

	has, linkedID, err := h.processor.GetChainLinkInfo(c.Request.Context(), uid, req.STIType)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasExistingNotification": has, "linkedReportId": linkedID})
}

type deleteExposureReportRequest struct {
	ReportID string `json:"reportId"`
}

func (h *APIHandler) handleDeleteExposureReport(c *gin.Context) {
	uid := callerUID(c)
	var req deleteExposureReportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ReportID == "" {
		writeError(c, http.StatusBadRequest, "invalid-argument", "reportId is required")
		return
	}

	now := time.Now().UnixMilli()
	if err := h.processor.DeleteExposureReport(c.Request.Context(), uid, req.ReportID, now); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type recoverAccountRequest struct {
	SavedID string `json:"savedId"`
}

func (h *APIHandler) handleRecoverAccount(c *gin.Context) {
	uid := callerUID(c)
	var req recoverAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid-argument", "malformed request body")
		return
	}
	if !h.enforceLimit(c, uid, models.OpAccountRecovery) {
		return
	}

	user, err := h.processor.RecoverAccount(c.Request.Context(), req.SavedID)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	token, err := h.authClient.CustomToken(c.Request.Context(), user.UID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal", "failed to mint recovery token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"customToken": token})
}

func (h *APIHandler) handleExportUserData(c *gin.Context) {
	uid := callerUID(c)
	if !h.enforceLimit(c, uid, models.OpDataExport) {
		return
	}

	bundle, err := h.processor.ExportUserData(c.Request.Context(), uid)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          bundle.User,
		"interactions":  bundle.Interactions,
		"notifications": bundle.Notifications,
		"reports":       bundle.Reports,
	})
}
