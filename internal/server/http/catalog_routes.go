package httpserver

import (
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"github.com/hualuo-tech/datagov/internal/catalog"
)

func (s *Server) addCatalogRoutes(r *gin.Engine) {
	crudRoutes(s, r, "/api/catalog/dashboards", s.catalog.Dashboards)
	crudRoutes(s, r, "/api/catalog/reports", s.catalog.Reports)
	crudRoutes(s, r, "/api/catalog/models", s.catalog.Models)
	crudRoutes(s, r, "/api/catalog/apis", s.catalog.APIs)
}

// crudRoutes mounts the uniform list/create/get/update/delete surface for one
// catalog entity. Reads need catalog:read, writes need catalog:manage.
func crudRoutes[T any](s *Server, r *gin.Engine, base string, repo *catalog.Repo[T]) {
	r.GET(base, func(c *gin.Context) {
		if _, _, ok := s.require(c, "catalog:read"); !ok {
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
		items, total, err := repo.List(c.Request.Context(), catalog.ListOpts{
			Query: c.Query("q"),
			Owner: c.Query("owner"),
			Page:  page,
			Size:  size,
		})
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"items": items, "total": total, "page": page, "size": size})
	})

	r.POST(base, func(c *gin.Context) {
		user, _, ok := s.require(c, "catalog:manage")
		if !ok {
			return
		}
		var rec T
		if err := c.ShouldBindJSON(&rec); err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		if err := repo.Create(c.Request.Context(), &rec); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("catalog.create", user, base, nil)
		s.JSON(c, http.StatusCreated, rec)
	})

	r.GET(base+"/:id", func(c *gin.Context) {
		if _, _, ok := s.require(c, "catalog:read"); !ok {
			return
		}
		id, ok := paramID(s, c)
		if !ok {
			return
		}
		rec, err := repo.Get(c.Request.Context(), id)
		if err != nil {
			s.writeErr(c, err)
			return
		}
		s.JSON(c, http.StatusOK, rec)
	})

	r.PUT(base+"/:id", func(c *gin.Context) {
		user, _, ok := s.require(c, "catalog:manage")
		if !ok {
			return
		}
		id, ok := paramID(s, c)
		if !ok {
			return
		}
		// Load-then-overwrite keeps gorm.Model fields intact.
		rec, err := repo.Get(c.Request.Context(), id)
		if err != nil {
			s.writeErr(c, err)
			return
		}
		if err := c.ShouldBindJSON(rec); err != nil {
			s.respondError(c, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		if err := repo.Update(c.Request.Context(), rec); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("catalog.update", user, c.Param("id"), nil)
		s.JSON(c, http.StatusOK, rec)
	})

	r.DELETE(base+"/:id", func(c *gin.Context) {
		user, _, ok := s.require(c, "catalog:manage")
		if !ok {
			return
		}
		id, ok := paramID(s, c)
		if !ok {
			return
		}
		if err := repo.Delete(c.Request.Context(), id); err != nil {
			s.writeErr(c, err)
			return
		}
		s.auditLog("catalog.delete", user, c.Param("id"), nil)
		s.JSON(c, http.StatusOK, gin.H{"deleted": id})
	})
}

func paramID(s *Server, c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "bad_request", "invalid id")
		return 0, false
	}
	return uint(id), true
}
