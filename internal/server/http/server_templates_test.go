package httpserver

import (
	"fmt"
	"net/http"
	"testing"

	gin "github.com/gin-gonic/gin"

	"github.com/hualuo-tech/datagov/internal/workflow/template"
)

func TestTemplateRoutes(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token("root", "admin")

	// schema rejects unknown fields and wrong types before the repo sees them
	rr := ts.do(http.MethodPost, "/api/templates", admin, gin.H{"approval_type": "ACCESS", "bogus": 1})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown field: expect 422, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(http.MethodPost, "/api/templates", admin, gin.H{"approval_type": "NOPE"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown type: expect 422, got %d", rr.Code)
	}

	// empty chain is invalid until a step exists
	rr = ts.do(http.MethodGet, "/api/templates/validate?type=ACCESS", admin, nil)
	if v := decode[map[string]any](t, rr); v["valid"] != false {
		t.Fatalf("empty chain should be invalid: %v", v)
	}

	mk := func(order int, role string) template.Template {
		rr := ts.do(http.MethodPost, "/api/templates", admin, gin.H{
			"approval_type": "ACCESS", "step_order": order, "approver_role": role,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create step: expect 201, got %d: %s", rr.Code, rr.Body.String())
		}
		return decode[template.Template](t, rr)
	}
	s1 := mk(1, "data_owner")
	s2 := mk(2, "steward")

	rr = ts.do(http.MethodGet, "/api/templates?type=ACCESS", admin, nil)
	listed := decode[struct {
		Items []template.Template `json:"items"`
	}](t, rr)
	if len(listed.Items) != 2 || listed.Items[0].ApproverRole != "data_owner" {
		t.Fatalf("unexpected listing: %+v", listed.Items)
	}

	rr = ts.do(http.MethodGet, "/api/templates/validate?type=ACCESS", admin, nil)
	if v := decode[map[string]any](t, rr); v["valid"] != true {
		t.Fatalf("chain should be valid: %v", v)
	}

	// stale expected_version conflicts
	rr = ts.do(http.MethodPut, fmt.Sprintf("/api/templates/%d", s1.ID), admin, gin.H{
		"approval_type": "ACCESS", "step_order": 1, "approver_role": "dba", "expected_version": 42,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale update: expect 409, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(http.MethodPut, fmt.Sprintf("/api/templates/%d", s1.ID), admin, gin.H{
		"approval_type": "ACCESS", "step_order": 1, "approver_role": "dba", "expected_version": s1.Version,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expect 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// reorder must name exactly the active set
	rr = ts.do(http.MethodPost, "/api/templates/reorder", admin, gin.H{
		"approval_type": "ACCESS", "ordered_ids": []uint{s2.ID},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short reorder: expect 422, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(http.MethodPost, "/api/templates/reorder", admin, gin.H{
		"approval_type": "ACCESS", "ordered_ids": []uint{s2.ID, s1.ID},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("reorder: expect 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// copy the chain onto another type, then delete a step from the source
	rr = ts.do(http.MethodPost, "/api/templates/copy", admin, gin.H{"from": "ACCESS", "to": "EXPORT"})
	if rr.Code != http.StatusOK {
		t.Fatalf("copy: expect 200, got %d: %s", rr.Code, rr.Body.String())
	}
	exported := decode[struct {
		Items []template.Template `json:"items"`
	}](t, ts.do(http.MethodGet, "/api/templates?type=EXPORT", admin, nil))
	if len(exported.Items) != 2 {
		t.Fatalf("expect copied chain of 2, got %d", len(exported.Items))
	}

	rr = ts.do(http.MethodDelete, fmt.Sprintf("/api/templates/%d", s1.ID), admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expect 200, got %d", rr.Code)
	}
	listed = decode[struct {
		Items []template.Template `json:"items"`
	}](t, ts.do(http.MethodGet, "/api/templates?type=ACCESS", admin, nil))
	if len(listed.Items) != 1 || listed.Items[0].StepOrder != 1 {
		t.Fatalf("expect compacted single-step chain, got %+v", listed.Items)
	}

	// replace installs a fresh chain atomically
	rr = ts.do(http.MethodPost, "/api/templates/replace", admin, gin.H{
		"approval_type": "ACCESS",
		"steps": []gin.H{
			{"approval_type": "ACCESS", "step_order": 1, "approver_role": "security"},
			{"approval_type": "ACCESS", "step_order": 2, "approver_role": "ciso"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("replace: expect 200, got %d: %s", rr.Code, rr.Body.String())
	}
	listed = decode[struct {
		Items []template.Template `json:"items"`
	}](t, ts.do(http.MethodGet, "/api/templates?type=ACCESS", admin, nil))
	if len(listed.Items) != 2 || listed.Items[0].ApproverRole != "security" {
		t.Fatalf("unexpected chain after replace: %+v", listed.Items)
	}
}

func TestTemplateRoutesRequireManage(t *testing.T) {
	ts := newTestServer(t)
	approver := ts.token("bob", "approver")
	// approvers may inspect chains but not edit them
	if rr := ts.do(http.MethodGet, "/api/templates?type=ACCESS", approver, nil); rr.Code != http.StatusOK {
		t.Fatalf("approver list: expect 200, got %d", rr.Code)
	}
	rr := ts.do(http.MethodPost, "/api/templates", approver, gin.H{"approval_type": "ACCESS", "step_order": 1})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("approver create: expect 403, got %d", rr.Code)
	}
}
