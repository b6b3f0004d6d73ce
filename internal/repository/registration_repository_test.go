package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/uniportal/registrar-api/internal/models"
)

func TestRegistrationRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("r1", models.RegistrationStatusDraft, models.RegistrationStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := repo.UpdateStatus(context.Background(), "r1", models.RegistrationStatusDraft, models.RegistrationStatusPending)
	require.NoError(t, err)
	require.True(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApplyDecisionApprove(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE registrations SET status").
		WithArgs("r1", models.RegistrationStatusApproved, "admin", sqlmock.AnyArg(), models.RegistrationStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1"))
	mock.ExpectQuery("UPDATE course_uploads SET status").
		WithArgs("r1", models.UploadStatusApproved, "admin", sqlmock.AnyArg(), models.UploadStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("c1").AddRow("c2"))
	mock.ExpectCommit()

	result, err := repo.ApplyDecision(context.Background(), "r1", models.RegistrationStatusApproved, "admin", nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Transitioned)
	require.Equal(t, "s1", result.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApplyDecisionRejectReleasesSeats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)
	reason := "incomplete records"

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE registrations SET status").
		WithArgs("r1", models.RegistrationStatusRejected, "admin", sqlmock.AnyArg(), models.RegistrationStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1"))
	mock.ExpectQuery("UPDATE course_uploads SET status").
		WithArgs("r1", models.UploadStatusRejected, "admin", sqlmock.AnyArg(), reason, models.UploadStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("c1").AddRow("c2"))
	mock.ExpectExec("UPDATE courses SET current_students = current_students - 1").
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE courses SET current_students = current_students - 1").
		WithArgs("c2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.ApplyDecision(context.Background(), "r1", models.RegistrationStatusRejected, "admin", &reason)
	require.NoError(t, err)
	require.Equal(t, 2, result.Transitioned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApplyDecisionRaced(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE registrations SET status").
		WithArgs("r1", models.RegistrationStatusApproved, "admin", sqlmock.AnyArg(), models.RegistrationStatusPending).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.ApplyDecision(context.Background(), "r1", models.RegistrationStatusApproved, "admin", nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryApplyDecisionInvalidStatus(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	_, err := repo.ApplyDecision(context.Background(), "r1", models.RegistrationStatusDraft, "admin", nil)
	require.Error(t, err)
}

func TestRegistrationRepositoryCancelWithSeatRelease(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE registrations SET status").
		WithArgs("r1", models.RegistrationStatusCancelled, sqlmock.AnyArg(), models.RegistrationStatusDraft, models.RegistrationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT course_id FROM course_uploads").
		WithArgs("r1", models.UploadStatusPending, models.UploadStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("c1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_uploads WHERE registration_id = $1")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE courses SET current_students = current_students - 1").
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cancelled, err := repo.CancelWithSeatRelease(context.Background(), "r1")
	require.NoError(t, err)
	require.True(t, cancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCancelAlreadyFinal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE registrations SET status").
		WithArgs("r1", models.RegistrationStatusCancelled, sqlmock.AnyArg(), models.RegistrationStatusDraft, models.RegistrationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	cancelled, err := repo.CancelWithSeatRelease(context.Background(), "r1")
	require.NoError(t, err)
	require.False(t, cancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}
