package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/uniportal/registrar-api/internal/models"
	"github.com/uniportal/registrar-api/internal/service"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
	"github.com/uniportal/registrar-api/pkg/response"
)

// ExportHandler streams registration documents as PDF and CSV downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// RegistrationPDF godoc
// @Summary Download a registration summary as PDF
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Registration ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /registrations/{id}/export [get]
func (h *ExportHandler) RegistrationPDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payload, filename, err := h.exports.RegistrationPDF(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, "application/pdf", payload)
}

// UploadsCSV godoc
// @Summary Download course uploads as CSV
// @Tags Exports
// @Produce text/csv
// @Param semesterId query string false "Filter by semester"
// @Param departmentId query string false "Filter by department"
// @Param status query string false "Filter by upload status"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /exports/uploads [get]
func (h *ExportHandler) UploadsCSV(c *gin.Context) {
	var filter models.CourseUploadFilter
	filter.SemesterID = c.Query("semesterId")
	filter.DepartmentID = c.Query("departmentId")
	filter.Status = models.UploadStatus(c.Query("status"))

	payload, filename, err := h.exports.UploadsCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, "text/csv", payload)
}
