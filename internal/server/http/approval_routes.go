package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
	"github.com/hualuo-tech/datagov/internal/workflow/approval"
	"github.com/hualuo-tech/datagov/internal/workflow/policy"
)

func (s *Server) addApprovalRoutes(r *gin.Engine) {
	r.POST("/api/approvals", func(c *gin.Context) {
		user, _, ok := s.require(c, "approvals:create")
		if !ok {
			return
		}
		var req struct {
			Type          string `json:"type"`
			Title         string `json:"title"`
			Description   string `json:"description"`
			TargetType    string `json:"target_type"`
			TargetID      string `json:"target_id"`
			TargetName    string `json:"target_name"`
			Scope         string `json:"scope"`
			Sensitivity   string `json:"sensitivity"`
			Justification string `json:"justification"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		a, err := s.engine.Create(c.Request.Context(), approval.CreateInput{
			Type:          workflow.ApprovalType(req.Type),
			Title:         req.Title,
			Description:   req.Description,
			RequesterRef:  user,
			TargetType:    policy.TargetType(req.TargetType),
			TargetID:      req.TargetID,
			TargetName:    req.TargetName,
			Scope:         policy.Scope(req.Scope),
			Sensitivity:   policy.Sensitivity(req.Sensitivity),
			Justification: req.Justification,
		})
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.metrics.Created(c.Request.Context(), a.Type)
		s.auditLog("approval.create", user, a.Ref, map[string]string{
			"type": a.Type, "target": a.TargetID, "scope": a.Scope,
		})
		s.JSON(c, http.StatusCreated, a)
	})

	r.GET("/api/approvals", func(c *gin.Context) {
		if _, _, ok := s.require(c, "approvals:read"); !ok {
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
		items, total, err := s.engine.List(c.Request.Context(), approval.Filter{
			Status:    c.Query("status"),
			Type:      c.Query("type"),
			Requester: c.Query("requester"),
			Target:    c.Query("target"),
		}, approval.Page{Page: page, Size: size})
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"items": items, "total": total, "page": page, "size": size})
	})

	// Own inbox: steps the caller (or an explicit approver ref) may decide.
	r.GET("/api/approvals/pending", func(c *gin.Context) {
		user, roles, ok := s.require(c, "approvals:decide", "approvals:read")
		if !ok {
			return
		}
		ref, matchRoles := user, roles
		if q := c.Query("approver"); q != "" && q != user {
			// Looking at someone else's queue needs the read permission,
			// and role matching only applies to the caller's own queue.
			if !s.can(user, roles, "approvals:read") {
				s.respondError(c, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
			ref, matchRoles = q, nil
		}
		steps, err := s.engine.ListPendingForApprover(c.Request.Context(), ref, matchRoles)
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"items": steps})
	})

	r.GET("/api/approvals/:id", func(c *gin.Context) {
		if _, _, ok := s.require(c, "approvals:read"); !ok {
			return
		}
		a, ok := s.lookupApproval(c)
		if !ok {
			return
		}
		s.JSON(c, http.StatusOK, a)
	})

	r.GET("/api/approvals/:id/progress", func(c *gin.Context) {
		if _, _, ok := s.require(c, "approvals:read"); !ok {
			return
		}
		a, ok := s.lookupApproval(c)
		if !ok {
			return
		}
		pct, err := s.engine.Progress(c.Request.Context(), a.ID)
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"approval_id": a.ID, "status": a.Status, "progress": pct})
	})

	r.GET("/api/approvals/:id/steps", func(c *gin.Context) {
		if _, _, ok := s.require(c, "approvals:read"); !ok {
			return
		}
		a, ok := s.lookupApproval(c)
		if !ok {
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"items": a.Steps})
	})

	r.GET("/api/approvals/:id/steps/next", func(c *gin.Context) {
		if _, _, ok := s.require(c, "approvals:read"); !ok {
			return
		}
		a, ok := s.lookupApproval(c)
		if !ok {
			return
		}
		st, err := s.engine.NextPendingStep(c.Request.Context(), a.ID)
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.JSON(c, http.StatusOK, st)
	})

	r.POST("/api/steps/:id/decide", func(c *gin.Context) {
		user, _, ok := s.require(c, "approvals:decide")
		if !ok {
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid step id")
			return
		}
		var req struct {
			Action          string `json:"action"`
			Comment         string `json:"comment"`
			ExpectedVersion int    `json:"expected_version"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		st, err := s.engine.Decide(c.Request.Context(), approval.DecideInput{
			StepID:          uint(id),
			Action:          approval.Action(strings.ToLower(req.Action)),
			Comment:         req.Comment,
			ApproverRef:     user,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.metrics.Decision(c.Request.Context(), strings.ToLower(req.Action))
		s.auditLog("step.decide", user, strconv.FormatUint(uint64(st.ID), 10), map[string]string{
			"action": strings.ToLower(req.Action), "status": st.Status,
		})
		s.JSON(c, http.StatusOK, st)
	})
}

// lookupApproval resolves the :id path segment as a numeric id first, then
// as an external ref. Writes the 404 itself on miss.
func (s *Server) lookupApproval(c *gin.Context) (*approval.Approval, bool) {
	idStr := c.Param("id")
	var (
		a   *approval.Approval
		err error
	)
	if n, perr := strconv.ParseUint(idStr, 10, 64); perr == nil {
		a, err = s.engine.GetByID(c.Request.Context(), uint(n))
	} else {
		a, err = s.engine.GetByRef(c.Request.Context(), idStr)
	}
	if err != nil {
		s.writeErr(c, err)
		return nil, false
	}
	return a, true
}
