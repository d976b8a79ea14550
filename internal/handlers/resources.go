package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/comet-platform/golive/internal/ws"
	"github.com/comet-platform/golive/pkg/models"
)

// The resource handlers stand in for the platform's service tier. They serve
// representative payloads and feed the fan-out hub, so dashboards exercise
// the full subscribe/deliver path against the gateway alone.

var demoPipelines = []models.Pipeline{
	{ID: "pl-1", Name: "backend-ci", Repo: "comet/backend", Branch: "main", Status: "passing"},
	{ID: "pl-2", Name: "frontend-ci", Repo: "comet/frontend", Branch: "main", Status: "failing"},
}

var demoDeployments = []models.Deployment{
	{ID: "dp-1", Service: "api", Environment: "staging", Version: "1.14.2", Status: "healthy"},
	{ID: "dp-2", Service: "worker", Environment: "production", Version: "1.14.1", Status: "healthy"},
}

var demoTestRuns = []models.TestRun{
	{ID: "tr-1", SuiteName: "integration", Status: "passed", Passed: 412, Failed: 0, Skipped: 3},
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Credential handling lives in the identity service; these endpoints exist so
// the auth-flow budgets have routes to protect, and they forward upstream in
// deployment. The stubs accept any well-formed request.

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"username": req.Username, "message": "login accepted"})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username, email and password (min 8 chars) are required")
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"username": req.Username, "message": "registration accepted"})
}

func (s *Server) handlePasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "email is required")
		return
	}
	respondOK(c, http.StatusAccepted, gin.H{"message": "reset email queued"})
}

func (s *Server) handleListPipelines(c *gin.Context) {
	respondOK(c, http.StatusOK, demoPipelines)
}

func (s *Server) handleGetPipeline(c *gin.Context) {
	id := c.Param("id")
	for _, p := range demoPipelines {
		if p.ID == id {
			respondOK(c, http.StatusOK, p)
			return
		}
	}
	respondError(c, http.StatusNotFound, "NOT_FOUND", "pipeline not found")
}

func (s *Server) handleTriggerPipeline(c *gin.Context) {
	run := models.PipelineRun{
		ID:         uuid.NewString(),
		PipelineID: c.Param("id"),
		Number:     1,
		Status:     "running",
		StartedAt:  time.Now().UTC(),
	}
	s.hub.Publish(ws.Event{Type: ws.EventPipelineRunUpdate, Payload: run})
	respondOK(c, http.StatusAccepted, run)
}

func (s *Server) handleListTestRuns(c *gin.Context) {
	respondOK(c, http.StatusOK, demoTestRuns)
}

func (s *Server) handleTriggerTestRun(c *gin.Context) {
	run := models.TestRun{
		ID:        uuid.NewString(),
		SuiteName: c.Param("id"),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	s.hub.Publish(ws.Event{Type: ws.EventTestRunUpdate, Payload: run})
	respondOK(c, http.StatusAccepted, run)
}

func (s *Server) handleListDeployments(c *gin.Context) {
	respondOK(c, http.StatusOK, demoDeployments)
}

func (s *Server) handleTriggerDeployment(c *gin.Context) {
	dep := models.Deployment{
		ID:          uuid.NewString(),
		Service:     c.Param("id"),
		Environment: c.DefaultQuery("environment", "staging"),
		Version:     c.Query("version"),
		Status:      "deploying",
		DeployedAt:  time.Now().UTC(),
	}
	s.hub.Publish(ws.Event{Type: ws.EventDeploymentUpdate, Payload: dep})
	respondOK(c, http.StatusAccepted, dep)
}

// handleUpload accepts a multipart artifact upload. Storage is delegated
// upstream; the gateway's job is the heavy-preset budget on the route.
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file field is required")
		return
	}
	respondOK(c, http.StatusAccepted, gin.H{
		"id":   uuid.NewString(),
		"name": file.Filename,
		"size": file.Size,
	})
}
