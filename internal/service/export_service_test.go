package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
	"github.com/uniportal/registrar-api/pkg/export"
)

type mockExportUploadStore struct {
	uploads []models.CourseUploadDetail
	pages   []int
}

func (m *mockExportUploadStore) List(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, int, error) {
	m.pages = append(m.pages, filter.Page)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(m.uploads) {
		return nil, len(m.uploads), nil
	}
	end := start + filter.PageSize
	if end > len(m.uploads) {
		end = len(m.uploads)
	}
	return m.uploads[start:end], len(m.uploads), nil
}

type capturingCSVRenderer struct {
	dataset export.Dataset
}

func (r *capturingCSVRenderer) Render(data export.Dataset) ([]byte, error) {
	r.dataset = data
	return []byte("csv"), nil
}

func TestExportServiceUploadsCSVPagesThroughAllUploads(t *testing.T) {
	store := &mockExportUploadStore{}
	for i := 0; i < 155; i++ {
		store.uploads = append(store.uploads, models.CourseUploadDetail{
			CourseUpload: models.CourseUpload{ID: fmt.Sprintf("u%d", i), Status: models.UploadStatusPending},
			CourseCode:   "CS101",
			StudentName:  fmt.Sprintf("Student %d", i),
		})
	}
	csv := &capturingCSVRenderer{}
	svc := NewExportService(nil, store, nil, csv, zap.NewNop())

	payload, filename, err := svc.UploadsCSV(context.Background(), models.CourseUploadFilter{SemesterID: "sem1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("csv"), payload)
	assert.Equal(t, "course-uploads.csv", filename)
	assert.Equal(t, []int{1, 2}, store.pages)
	assert.Len(t, csv.dataset.Rows, 155)
}
