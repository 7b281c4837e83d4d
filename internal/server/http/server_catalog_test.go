package httpserver

import (
	"fmt"
	"net/http"
	"testing"

	gin "github.com/gin-gonic/gin"

	"github.com/hualuo-tech/datagov/internal/catalog"
)

func TestCatalogDashboardCRUD(t *testing.T) {
	ts := newTestServer(t)
	steward := ts.token("bob", "steward")
	viewer := ts.token("eve", "viewer")

	rr := ts.do(http.MethodPost, "/api/catalog/dashboards", steward, gin.H{
		"Name": "Revenue", "Owner": "alice", "Description": "weekly revenue",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expect 201, got %d: %s", rr.Code, rr.Body.String())
	}
	d := decode[catalog.Dashboard](t, rr)
	if d.ID == 0 || d.Name != "Revenue" {
		t.Fatalf("unexpected dashboard: %+v", d)
	}

	// viewers can read but not write
	if rr := ts.do(http.MethodGet, fmt.Sprintf("/api/catalog/dashboards/%d", d.ID), viewer, nil); rr.Code != http.StatusOK {
		t.Fatalf("viewer get: expect 200, got %d", rr.Code)
	}
	if rr := ts.do(http.MethodDelete, fmt.Sprintf("/api/catalog/dashboards/%d", d.ID), viewer, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("viewer delete: expect 403, got %d", rr.Code)
	}

	rr = ts.do(http.MethodPut, fmt.Sprintf("/api/catalog/dashboards/%d", d.ID), steward, gin.H{
		"Name": "Revenue (EMEA)",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expect 200, got %d: %s", rr.Code, rr.Body.String())
	}
	upd := decode[catalog.Dashboard](t, rr)
	if upd.Name != "Revenue (EMEA)" || upd.Owner != "alice" {
		t.Fatalf("update should keep unset fields, got %+v", upd)
	}

	listed := decode[struct {
		Items []catalog.Dashboard `json:"items"`
		Total int64               `json:"total"`
	}](t, ts.do(http.MethodGet, "/api/catalog/dashboards?q=Revenue&owner=alice", viewer, nil))
	if listed.Total != 1 {
		t.Fatalf("expect 1 match, got %d", listed.Total)
	}

	if rr := ts.do(http.MethodDelete, fmt.Sprintf("/api/catalog/dashboards/%d", d.ID), steward, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete: expect 200, got %d", rr.Code)
	}
	if rr := ts.do(http.MethodGet, fmt.Sprintf("/api/catalog/dashboards/%d", d.ID), viewer, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expect 404, got %d", rr.Code)
	}
}

func TestCatalogEntitiesMounted(t *testing.T) {
	ts := newTestServer(t)
	steward := ts.token("bob", "steward")
	for _, base := range []string{
		"/api/catalog/dashboards",
		"/api/catalog/reports",
		"/api/catalog/models",
		"/api/catalog/apis",
	} {
		rr := ts.do(http.MethodGet, base, steward, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expect 200, got %d", base, rr.Code)
		}
	}
}
