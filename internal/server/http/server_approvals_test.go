package httpserver

import (
	"fmt"
	"net/http"
	"testing"

	gin "github.com/gin-gonic/gin"

	"github.com/hualuo-tech/datagov/internal/workflow/approval"
)

func createReq() gin.H {
	return gin.H{
		"type":          "ACCESS",
		"title":         "read access to orders",
		"target_type":   "DATASET",
		"target_id":     "warehouse.orders",
		"target_name":   "Orders",
		"scope":         "READ",
		"sensitivity":   "INTERNAL",
		"justification": "quarterly revenue report",
	}
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccessChain()
	requester := ts.token("alice", "requester")
	approver := ts.token("bob", "approver")

	rr := ts.do(http.MethodPost, "/api/approvals", requester, createReq())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expect 201, got %d: %s", rr.Code, rr.Body.String())
	}
	a := decode[approval.Approval](t, rr)
	if a.Ref == "" || a.Status != "PENDING" || len(a.Steps) != 2 {
		t.Fatalf("unexpected approval: %+v", a)
	}
	if a.RequesterID != "alice" {
		t.Fatalf("requester comes from the token, got %q", a.RequesterID)
	}

	// lookup works by numeric id and by ref
	for _, key := range []string{fmt.Sprint(a.ID), a.Ref} {
		if rr := ts.do(http.MethodGet, "/api/approvals/"+key, approver, nil); rr.Code != http.StatusOK {
			t.Fatalf("get %s: expect 200, got %d", key, rr.Code)
		}
	}

	// decide both steps in order
	for i, st := range a.Steps {
		rr := ts.do(http.MethodPost, fmt.Sprintf("/api/steps/%d/decide", st.ID), approver,
			gin.H{"action": "approve", "comment": "ok"})
		if rr.Code != http.StatusOK {
			t.Fatalf("decide step %d: expect 200, got %d: %s", i+1, rr.Code, rr.Body.String())
		}
		got := decode[approval.Step](t, rr)
		if got.Status != "APPROVED" || got.DecidedBy != "bob" {
			t.Fatalf("unexpected step after decide: %+v", got)
		}
	}

	// aggregate approved, access window stamped by the activator
	rr = ts.do(http.MethodGet, "/api/approvals/"+a.Ref, approver, nil)
	final := decode[approval.Approval](t, rr)
	if final.Status != "APPROVED" {
		t.Fatalf("expect APPROVED, got %s", final.Status)
	}
	if final.ActivatedAt == nil || final.ExpiresAt == nil {
		t.Fatalf("expect access window stamped, got %+v %+v", final.ActivatedAt, final.ExpiresAt)
	}

	// progress reports 100 and no next step remains
	rr = ts.do(http.MethodGet, fmt.Sprintf("/api/approvals/%d/progress", a.ID), approver, nil)
	prog := decode[map[string]any](t, rr)
	if prog["progress"].(float64) != 100 {
		t.Fatalf("expect progress 100, got %v", prog["progress"])
	}
	if rr := ts.do(http.MethodGet, fmt.Sprintf("/api/approvals/%d/steps/next", a.ID), approver, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("next on finished approval: expect 404, got %d", rr.Code)
	}

	// deciding again is an invalid state, not a conflict
	rr = ts.do(http.MethodPost, fmt.Sprintf("/api/steps/%d/decide", a.Steps[0].ID), approver,
		gin.H{"action": "reject"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("re-decide: expect 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decode[map[string]any](t, rr); body["code"] != "invalid_state" {
		t.Fatalf("expect invalid_state, got %v", body)
	}
}

func TestDecideStaleVersionConflicts(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccessChain()
	requester := ts.token("alice", "requester")
	approver := ts.token("bob", "approver")

	rr := ts.do(http.MethodPost, "/api/approvals", requester, createReq())
	a := decode[approval.Approval](t, rr)

	rr = ts.do(http.MethodPost, fmt.Sprintf("/api/steps/%d/decide", a.Steps[0].ID), approver,
		gin.H{"action": "approve", "expected_version": 99})
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale version: expect 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decode[map[string]any](t, rr); body["code"] != "conflict" {
		t.Fatalf("expect conflict code, got %v", body)
	}
}

func TestCreateWithoutTemplatesRejected(t *testing.T) {
	ts := newTestServer(t)
	requester := ts.token("alice", "requester")
	rr := ts.do(http.MethodPost, "/api/approvals", requester, createReq())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decode[map[string]any](t, rr); body["code"] != "incompatible_request" {
		t.Fatalf("expect incompatible_request, got %v", body)
	}
}

func TestPendingInbox(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccessChain()
	requester := ts.token("alice", "requester")
	ts.do(http.MethodPost, "/api/approvals", requester, createReq())

	// data_owner sees step 1 through role matching
	owner := ts.token("carol", "approver", "data_owner")
	rr := ts.do(http.MethodGet, "/api/approvals/pending", owner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d", rr.Code)
	}
	inbox := decode[struct {
		Items []approval.Step `json:"items"`
	}](t, rr)
	if len(inbox.Items) != 1 || inbox.Items[0].ApproverRole != "data_owner" {
		t.Fatalf("unexpected inbox: %+v", inbox.Items)
	}

	// a stranger role sees nothing
	other := ts.token("dave", "approver", "finance")
	inbox = decode[struct {
		Items []approval.Step `json:"items"`
	}](t, ts.do(http.MethodGet, "/api/approvals/pending", other, nil))
	if len(inbox.Items) != 0 {
		t.Fatalf("expect empty inbox, got %+v", inbox.Items)
	}
}

func TestListFiltersOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccessChain()
	requester := ts.token("alice", "requester")
	for i := 0; i < 3; i++ {
		req := createReq()
		req["title"] = fmt.Sprintf("request %d", i)
		if rr := ts.do(http.MethodPost, "/api/approvals", requester, req); rr.Code != http.StatusCreated {
			t.Fatalf("create %d: got %d", i, rr.Code)
		}
	}
	approver := ts.token("bob", "approver")
	rr := ts.do(http.MethodGet, "/api/approvals?status=PENDING&type=ACCESS&size=2", approver, nil)
	page := decode[struct {
		Items []approval.Approval `json:"items"`
		Total int64               `json:"total"`
	}](t, rr)
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("expect total 3 page of 2, got total=%d len=%d", page.Total, len(page.Items))
	}
	rr = ts.do(http.MethodGet, "/api/approvals?status=APPROVED", approver, nil)
	page = decode[struct {
		Items []approval.Approval `json:"items"`
		Total int64               `json:"total"`
	}](t, rr)
	if page.Total != 0 {
		t.Fatalf("expect no approved approvals, got %d", page.Total)
	}
}
