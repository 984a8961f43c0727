package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/http/response"
	"github.com/yungbote/diagnosis-backend/internal/platform/apierr"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
	"github.com/yungbote/diagnosis-backend/internal/services"
)

type DiagnosisHandler struct {
	log *logger.Logger
	svc services.DiagnosisService
}

func NewDiagnosisHandler(log *logger.Logger, svc services.DiagnosisService) *DiagnosisHandler {
	return &DiagnosisHandler{log: log.With("handler", "DiagnosisHandler"), svc: svc}
}

type questionDTO struct {
	ID       uint   `json:"id"`
	Code     string `json:"code"`
	Question string `json:"question_text"`
	Category string `json:"category,omitempty"`
	InfoYes  string `json:"info_yes,omitempty"`
	InfoNo   string `json:"info_no,omitempty"`
}

type resultDTO struct {
	DiagnosisCode string          `json:"diagnosis_code"`
	RiskLevel     string          `json:"risk_level"`
	Explanation   json.RawMessage `json:"explanation"`
	CreatedAt     time.Time       `json:"created_at"`
}

type progressDTO struct {
	AssessmentID uuid.UUID        `json:"assessment_id"`
	Status       string           `json:"status"`
	Resumed      *bool            `json:"resumed,omitempty"`
	NextQuestion *questionDTO     `json:"next_question"`
	Result       *resultDTO       `json:"result,omitempty"`
	Report       *services.Report `json:"report,omitempty"`
}

func toQuestion(s *engine.Symptom) *questionDTO {
	if s == nil {
		return nil
	}
	return &questionDTO{
		ID:       s.ID,
		Code:     s.Code,
		Question: s.Question,
		Category: s.Category,
		InfoYes:  s.InfoYes,
		InfoNo:   s.InfoNo,
	}
}

func toResult(r *assessment.Result) *resultDTO {
	if r == nil {
		return nil
	}
	return &resultDTO{
		DiagnosisCode: r.DiagnosisCode,
		RiskLevel:     r.RiskLevel,
		Explanation:   json.RawMessage(r.Explanation),
		CreatedAt:     r.CreatedAt,
	}
}

// POST /api/diagnosis/start
func (h *DiagnosisHandler) Start(c *gin.Context) {
	out, err := h.svc.Start(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	resumed := out.Resumed
	status := out.Assessment.Status
	if out.Result != nil {
		status = assessment.StatusCompleted
	}
	response.RespondOK(c, progressDTO{
		AssessmentID: out.Assessment.ID,
		Status:       status,
		Resumed:      &resumed,
		NextQuestion: toQuestion(out.Next),
		Result:       toResult(out.Result),
		Report:       out.Report,
	})
}

// GET /api/diagnosis/assessments/:id/next
func (h *DiagnosisHandler) Next(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	next, err := h.svc.PeekNextQuestion(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if next != nil {
		response.RespondOK(c, progressDTO{AssessmentID: id, Status: assessment.StatusInProgress, NextQuestion: toQuestion(next)})
		return
	}
	report, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, progressDTO{AssessmentID: id, Status: report.Status, Report: report})
}

type answerRequest struct {
	SymptomID uint            `json:"symptom_id"`
	Answer    json.RawMessage `json:"answer"`
}

// POST /api/diagnosis/assessments/:id/answer
func (h *DiagnosisHandler) Answer(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.SymptomID == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("symptom_id is required"))
		return
	}
	value, err := ParseAnswer(req.Answer)
	if err != nil {
		response.RespondAppError(c, apierr.BadRequest("invalid_answer", err))
		return
	}

	adv, err := h.svc.RecordAnswerAndAdvance(c.Request.Context(), id, req.SymptomID, value)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := progressDTO{
		AssessmentID: id,
		Status:       assessment.StatusInProgress,
		NextQuestion: toQuestion(adv.Next),
		Result:       toResult(adv.Result),
	}
	if adv.Result != nil {
		out.Status = assessment.StatusCompleted
		report, err := h.svc.Report(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		out.Report = report
	}
	response.RespondOK(c, out)
}

// GET /api/diagnosis/assessments/:id/result
func (h *DiagnosisHandler) Result(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetResult(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := assessment.StatusInProgress
	if res != nil {
		status = assessment.StatusCompleted
	}
	response.RespondOK(c, gin.H{"assessment_id": id, "status": status, "result": toResult(res)})
}

// GET /api/diagnosis/assessments/:id/report
func (h *DiagnosisHandler) Report(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	report, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, report)
}

// GET /api/diagnosis/history
func (h *DiagnosisHandler) History(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	items, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"items": items})
}

func (h *DiagnosisHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	response.RespondAppError(c, err)
}

func assessmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid assessment id"))
		return uuid.Nil, false
	}
	return id, true
}

// ParseAnswer accepts a JSON boolean, the strings yes/no/true/false/1/0 or
// the numbers 1/0.
func ParseAnswer(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return false, errors.New("answer is required")
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("answer must be yes or no")
}
