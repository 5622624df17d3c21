package session

import (
	"encoding/base64"
	"net/http"
	"time"

	"shiftops-controlplane/pkg/errutil"
	"shiftops-controlplane/services/dutymanager"
	"shiftops-controlplane/services/workday"

	"github.com/gin-gonic/gin"
)

// Handler exposes the dashboard operations over HTTP.
type Handler struct {
	session *Session
}

func NewHandler(s *Session) *Handler {
	return &Handler{session: s}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/api/v1")

	v1.GET("/period/current", h.CurrentPeriod)
	v1.GET("/state", h.State)
	v1.POST("/tasks/:id/complete", h.CompleteTask)
	v1.POST("/tasks/:id/notice", h.AddNotice)
	v1.POST("/period/advance", h.AdvancePeriod)
	v1.POST("/trigger", h.SetTrigger)
	v1.GET("/submissions", h.ListSubmissions)
	v1.POST("/submissions", h.AddSubmission)
	v1.POST("/submissions/:taskId/review", h.Review)
	v1.POST("/closing/confirm", h.ConfirmClosing)
	v1.PUT("/test-time", h.SetTestTime)
}

type periodResponse struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	EventDriven bool           `json:"isEventDriven"`
	Tasks       []workday.Task `json:"tasks"`
}

func (h *Handler) CurrentPeriod(c *gin.Context) {
	instance := h.session.CurrentPeriod()
	if instance == nil {
		next := h.session.NextPeriod()
		resp := gin.H{"waitingForNextDay": true}
		if next != nil {
			resp["nextPeriod"] = gin.H{"id": next.ID, "displayName": next.DisplayName}
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, periodResponse{
		ID:          instance.Template.ID,
		DisplayName: instance.Template.DisplayName,
		EventDriven: instance.Template.EventDriven,
		Tasks:       instance.Tasks(h.session.Role()),
	})
}

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.State())
}

type completeRequest struct {
	EvidenceType string `json:"evidenceType"`
	Text         string `json:"text"`
	Payload      string `json:"payload"` // base64, photo/audio bytes
}

func (h *Handler) CompleteTask(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid completion request", err))
		return
	}

	var payload []byte
	if req.Payload != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			c.Error(errutil.BadRequest("invalid evidence payload", err))
			return
		}
		payload = decoded
	}

	kind := workday.UploadKind(req.EvidenceType)
	if kind == "" {
		kind = workday.UploadNone
	}

	if err := h.session.CompleteTask(c.Request.Context(), c.Param("id"), kind, payload, req.Text); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type noticeRequest struct {
	Comment string `json:"comment" binding:"required"`
}

func (h *Handler) AddNotice(c *gin.Context) {
	var req noticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid notice request", err))
		return
	}
	if err := h.session.AddNotice(c.Request.Context(), c.Param("id"), req.Comment); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) AdvancePeriod(c *gin.Context) {
	missing := h.session.AdvanceToNext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"missingTasks": missing})
}

type triggerRequest struct {
	Type string `json:"type" binding:"required"`
	By   string `json:"by" binding:"required"`
}

func (h *Handler) SetTrigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid trigger request", err))
		return
	}

	t := dutymanager.TriggerType(req.Type)
	switch t {
	case dutymanager.TriggerLastCustomerLeftLunch, dutymanager.TriggerLastCustomerLeftDinner:
	default:
		c.Error(errutil.BadRequest("unknown trigger type", nil))
		return
	}

	if err := h.session.SetTrigger(c.Request.Context(), t, req.By); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListSubmissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"triggers":     h.session.Duty().Triggers(),
		"submissions":  h.session.Duty().Submissions(),
		"reviewStatus": h.session.Duty().Reviews(),
	})
}

type submissionRequest struct {
	TaskID    string                        `json:"taskId" binding:"required"`
	TaskTitle string                        `json:"taskTitle"`
	By        string                        `json:"by"`
	Content   dutymanager.SubmissionContent `json:"content"`
}

func (h *Handler) AddSubmission(c *gin.Context) {
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid submission request", err))
		return
	}

	sub := dutymanager.Submission{
		TaskID:      req.TaskID,
		TaskTitle:   req.TaskTitle,
		SubmittedBy: req.By,
		SubmittedAt: h.session.Now(),
		Content:     req.Content,
	}
	if err := h.session.Duty().AddSubmission(c.Request.Context(), sub); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type reviewRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) Review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid review request", err))
		return
	}

	status := dutymanager.ReviewState(req.Status)
	if status != dutymanager.ReviewApproved && status != dutymanager.ReviewRejected {
		c.Error(errutil.BadRequest("review status must be approved or rejected", nil))
		return
	}

	if err := h.session.Duty().UpdateReviewStatus(c.Request.Context(), c.Param("taskId"), status, req.Reason, h.session.Now()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ConfirmClosing(c *gin.Context) {
	if err := h.session.ConfirmClosing(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type testTimeRequest struct {
	Time *time.Time `json:"time"`
}

func (h *Handler) SetTestTime(c *gin.Context) {
	var req testTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid test time request", err))
		return
	}
	if err := h.session.SetTestTime(c.Request.Context(), req.Time); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
