package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ntjsa/studentcrm/internal/service"
	appErrors "github.com/ntjsa/studentcrm/pkg/errors"
	"github.com/ntjsa/studentcrm/pkg/response"
)

// CourseHandler exposes course endpoints.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// Register mounts the course routes on the given group.
func (h *CourseHandler) Register(r *gin.RouterGroup) {
	courses := r.Group("/courses")
	courses.GET("", h.List)
	courses.GET("/allCourses", h.ListBare)
	courses.GET("/:id", h.Get)
	courses.POST("", h.Create)
	courses.PUT("/:id", h.Update)
	courses.DELETE("/:id", h.Delete)
}

// List returns all courses. The "list" wrapper key is what the original
// consumers expect, intentionally different from the student envelope.
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.courses.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"list": courses})
}

// ListBare returns all courses as a bare array.
func (h *CourseHandler) ListBare(c *gin.Context) {
	courses, err := h.courses.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// Get returns a single course with resolved student references.
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Create registers a new course.
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update replaces an existing course.
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Delete removes a course and echoes the removed id.
func (h *CourseHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.courses.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id})
}
