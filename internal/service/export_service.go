package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	appErrors "github.com/uniportal/registrar-api/pkg/errors"
	"github.com/uniportal/registrar-api/pkg/export"
)

type exportRegistrationStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
}

type exportUploadStore interface {
	List(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, int, error)
}

type pdfRenderer interface {
	RenderRegistration(summary export.RegistrationSummary) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportService renders registration documents for download.
type ExportService struct {
	registrations exportRegistrationStore
	uploads       exportUploadStore
	pdf           pdfRenderer
	csv           csvRenderer
	logger        *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(registrations exportRegistrationStore, uploads exportUploadStore, pdf pdfRenderer, csv csvRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("")
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &ExportService{registrations: registrations, uploads: uploads, pdf: pdf, csv: csv, logger: logger}
}

// RegistrationPDF renders a registration summary document. The requesting
// student may only export their own registration; staff roles export any.
func (s *ExportService) RegistrationPDF(ctx context.Context, registrationID, requesterID string, requesterRole models.UserRole) ([]byte, string, error) {
	detail, err := s.registrations.FindDetailByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if requesterRole == models.RoleStudent && detail.StudentID != requesterID {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}

	uploads, _, err := s.uploads.List(ctx, models.CourseUploadFilter{RegistrationID: registrationID, PageSize: 100})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registration courses")
	}

	summary := export.RegistrationSummary{
		StudentName:  detail.StudentName,
		StudentEmail: detail.StudentEmail,
		Semester:     detail.SemesterName,
		AcademicYear: detail.AcademicYear,
		Status:       string(detail.Status),
	}
	for _, upload := range uploads {
		line := export.CourseLine{
			Code:    upload.CourseCode,
			Title:   upload.CourseTitle,
			Credits: upload.Credits,
			Status:  string(upload.Status),
		}
		if upload.RejectionReason != nil {
			line.Decision = *upload.RejectionReason
		}
		summary.Courses = append(summary.Courses, line)
	}

	payload, err := s.pdf.RenderRegistration(summary)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render registration pdf")
	}
	filename := fmt.Sprintf("registration-%s.pdf", registrationID)
	return payload, filename, nil
}

// UploadsCSV renders the filtered course uploads as a CSV report for
// registrar review offline. The repository is paged through so the report
// covers every matching upload.
func (s *ExportService) UploadsCSV(ctx context.Context, filter models.CourseUploadFilter) ([]byte, string, error) {
	filter.PageSize = 100
	filter.Page = 1
	var uploads []models.CourseUploadDetail
	for {
		page, _, err := s.uploads.List(ctx, filter)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course uploads")
		}
		uploads = append(uploads, page...)
		if len(page) < filter.PageSize {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"student", "email", "course_code", "course_title", "credits", "status", "rejection_reason"},
	}
	for _, upload := range uploads {
		row := map[string]string{
			"student":      upload.StudentName,
			"email":        upload.StudentEmail,
			"course_code":  upload.CourseCode,
			"course_title": upload.CourseTitle,
			"credits":      strconv.Itoa(upload.Credits),
			"status":       string(upload.Status),
		}
		if upload.RejectionReason != nil {
			row["rejection_reason"] = *upload.RejectionReason
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render uploads csv")
	}
	return payload, "course-uploads.csv", nil
}
