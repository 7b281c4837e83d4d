package httpserver

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
	"github.com/hualuo-tech/datagov/internal/workflow/template"
)

// templateStepSchema validates administrator payloads before they reach the
// repo, so typos in role names or orders fail loudly with field-level errors.
const templateStepSchema = `{
  "type": "object",
  "required": ["approval_type"],
  "properties": {
    "approval_type": {"type": "string", "minLength": 1},
    "step_order": {"type": "integer", "minimum": 0},
    "approver_role": {"type": "string", "maxLength": 64},
    "approver_dept": {"type": "string", "maxLength": 64},
    "approver_id": {"type": "string", "maxLength": 64},
    "required": {"type": "boolean"},
    "description": {"type": "string"},
    "expected_version": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": false
}`

var templateSchemaLoader = gojsonschema.NewStringLoader(templateStepSchema)

type templateStepReq struct {
	ApprovalType    string `json:"approval_type"`
	StepOrder       int    `json:"step_order"`
	ApproverRole    string `json:"approver_role"`
	ApproverDept    string `json:"approver_dept"`
	ApproverID      string `json:"approver_id"`
	Required        *bool  `json:"required"`
	Description     string `json:"description"`
	ExpectedVersion int    `json:"expected_version"`
}

func (req *templateStepReq) toModel() *template.Template {
	required := true
	if req.Required != nil {
		required = *req.Required
	}
	return &template.Template{
		ApprovalType: req.ApprovalType,
		StepOrder:    req.StepOrder,
		ApproverRole: req.ApproverRole,
		ApproverDept: req.ApproverDept,
		ApproverID:   req.ApproverID,
		Required:     required,
		Description:  req.Description,
	}
}

// bindTemplateStep reads the body, schema-checks it, then unmarshals.
// On failure it has already written the error response.
func (s *Server) bindTemplateStep(c *gin.Context) (*templateStepReq, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, false
	}
	res, err := gojsonschema.Validate(templateSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, false
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		s.respondError(c, http.StatusUnprocessableEntity, "validation_failed", strings.Join(msgs, "; "))
		return nil, false
	}
	var req templateStepReq
	if err := jsonAPI.Unmarshal(body, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, false
	}
	if !workflow.ApprovalType(req.ApprovalType).Valid() {
		s.respondError(c, http.StatusUnprocessableEntity, "validation_failed", "unknown approval_type "+req.ApprovalType)
		return nil, false
	}
	return &req, true
}

// queryType parses the mandatory ?type= query parameter.
func (s *Server) queryType(c *gin.Context) (workflow.ApprovalType, bool) {
	at := workflow.ApprovalType(c.Query("type"))
	if !at.Valid() {
		s.respondError(c, http.StatusBadRequest, "bad_request", "unknown approval type "+string(at))
		return "", false
	}
	return at, true
}

func (s *Server) addTemplateRoutes(r *gin.Engine) {
	r.GET("/api/templates", func(c *gin.Context) {
		if _, _, ok := s.require(c, "templates:manage", "approvals:read"); !ok {
			return
		}
		at, ok := s.queryType(c)
		if !ok {
			return
		}
		items, err := s.templates.ActiveForType(c.Request.Context(), at)
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"items": items})
	})

	r.GET("/api/templates/validate", func(c *gin.Context) {
		if _, _, ok := s.require(c, "templates:manage", "approvals:read"); !ok {
			return
		}
		at, ok := s.queryType(c)
		if !ok {
			return
		}
		if err := s.templates.Validate(c.Request.Context(), at); err != nil {
			s.JSON(c, http.StatusOK, gin.H{"valid": false, "error": err.Error()})
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"valid": true})
	})

	r.POST("/api/templates", func(c *gin.Context) {
		user, _, ok := s.require(c, "templates:manage")
		if !ok {
			return
		}
		req, ok := s.bindTemplateStep(c)
		if !ok {
			return
		}
		t := req.toModel()
		if err := s.templates.Create(c.Request.Context(), t); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("template.create", user, req.ApprovalType, map[string]string{
			"step_order": strconv.Itoa(t.StepOrder), "role": t.ApproverRole,
		})
		s.JSON(c, http.StatusCreated, t)
	})

	r.PUT("/api/templates/:id", func(c *gin.Context) {
		user, _, ok := s.require(c, "templates:manage")
		if !ok {
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid template id")
			return
		}
		req, ok := s.bindTemplateStep(c)
		if !ok {
			return
		}
		t := req.toModel()
		t.ID = uint(id)
		if err := s.templates.Update(c.Request.Context(), t, req.ExpectedVersion); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("template.update", user, c.Param("id"), nil)
		s.JSON(c, http.StatusOK, t)
	})

	r.DELETE("/api/templates/:id", func(c *gin.Context) {
		user, _, ok := s.require(c, "templates:manage")
		if !ok {
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid template id")
			return
		}
		if err := s.templates.DeleteStep(c.Request.Context(), uint(id)); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("template.delete", user, c.Param("id"), nil)
		s.JSON(c, http.StatusOK, gin.H{"deleted": id})
	})

	r.POST("/api/templates/reorder", func(c *gin.Context) {
		user, _, ok := s.require(c, "templates:manage")
		if !ok {
			return
		}
		var req struct {
			ApprovalType string `json:"approval_type"`
			OrderedIDs   []uint `json:"ordered_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		at := workflow.ApprovalType(req.ApprovalType)
		if !at.Valid() {
			s.respondError(c, http.StatusBadRequest, "bad_request", "unknown approval type "+req.ApprovalType)
			return
		}
		if err := s.templates.Reorder(c.Request.Context(), at, req.OrderedIDs); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("template.reorder", user, req.ApprovalType, nil)
		s.JSON(c, http.StatusOK, gin.H{"reordered": len(req.OrderedIDs)})
	})

	r.POST("/api/templates/replace", func(c *gin.Context) {
		user, _, ok := s.require(c, "templates:manage")
		if !ok {
			return
		}
		var req struct {
			ApprovalType string            `json:"approval_type"`
			Steps        []templateStepReq `json:"steps"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		at := workflow.ApprovalType(req.ApprovalType)
		if !at.Valid() {
			s.respondError(c, http.StatusBadRequest, "bad_request", "unknown approval type "+req.ApprovalType)
			return
		}
		newSet := make([]*template.Template, 0, len(req.Steps))
		for i := range req.Steps {
			newSet = append(newSet, req.Steps[i].toModel())
		}
		if err := s.templates.ReplaceForType(c.Request.Context(), at, newSet); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("template.replace", user, req.ApprovalType, map[string]string{
			"steps": strconv.Itoa(len(newSet)),
		})
		s.JSON(c, http.StatusOK, gin.H{"steps": len(newSet)})
	})

	r.POST("/api/templates/copy", func(c *gin.Context) {
		user, _, ok := s.require(c, "templates:manage")
		if !ok {
			return
		}
		var req struct {
			From string `json:"from"`
			To   string `json:"to"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		src, dst := workflow.ApprovalType(req.From), workflow.ApprovalType(req.To)
		if !src.Valid() || !dst.Valid() {
			s.respondError(c, http.StatusBadRequest, "bad_request", "unknown approval type")
			return
		}
		if err := s.templates.CopyBetweenTypes(c.Request.Context(), src, dst); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("template.copy", user, req.From+"->"+req.To, nil)
		s.JSON(c, http.StatusOK, gin.H{"from": req.From, "to": req.To})
	})
}
