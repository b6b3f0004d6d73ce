package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/uniportal/registrar-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseUploadRepositoryCreateWithSeatClaim(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = current_students + 1, updated_at = $2 WHERE id = $1 AND current_students < max_students")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO course_uploads").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	upload := &models.CourseUpload{RegistrationID: "r1", CourseID: "c1", SemesterID: "sem1", StudentID: "s1"}
	err := repo.CreateWithSeatClaim(context.Background(), upload)
	require.NoError(t, err)
	require.NotEmpty(t, upload.ID)
	require.Equal(t, models.UploadStatusPending, upload.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryCreateWithSeatClaimFull(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = current_students + 1, updated_at = $2 WHERE id = $1 AND current_students < max_students")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	upload := &models.CourseUpload{RegistrationID: "r1", CourseID: "c1", SemesterID: "sem1", StudentID: "s1"}
	err := repo.CreateWithSeatClaim(context.Background(), upload)
	require.ErrorIs(t, err, ErrNoSeats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectExec("UPDATE course_uploads SET status").
		WithArgs("u1", models.UploadStatusApproved, "admin", sqlmock.AnyArg(), models.UploadStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	approved, err := repo.Approve(context.Background(), "u1", "admin")
	require.NoError(t, err)
	require.True(t, approved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryApproveAlreadyFinal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectExec("UPDATE course_uploads SET status").
		WithArgs("u1", models.UploadStatusApproved, "admin", sqlmock.AnyArg(), models.UploadStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	approved, err := repo.Approve(context.Background(), "u1", "admin")
	require.NoError(t, err)
	require.False(t, approved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryBulkApprove(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "semester_id", "course_code", "course_title"}).
		AddRow("s1", "sem1", "CS101", "Intro").
		AddRow("s2", "sem1", "MATH200", "Calculus")
	mock.ExpectQuery("UPDATE course_uploads cu SET status").
		WithArgs(models.UploadStatusApproved, "admin", sqlmock.AnyArg(), models.UploadStatusPending, "u1", "u2", "u3").
		WillReturnRows(rows)

	decisions, err := repo.BulkApprove(context.Background(), []string{"u1", "u2", "u3"}, "admin")
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	require.Equal(t, "s1", decisions[0].StudentID)
	require.Equal(t, "CS101", decisions[0].CourseCode)
	require.Equal(t, "sem1", decisions[1].SemesterID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryRejectWithSeatRelease(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE course_uploads SET status").
		WithArgs("u1", models.UploadStatusRejected, "admin", sqlmock.AnyArg(), "capacity", models.UploadStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = current_students - 1, updated_at = $2 WHERE id = $1 AND current_students > 0")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rejected, err := repo.RejectWithSeatRelease(context.Background(), "u1", "admin", "capacity", "c1")
	require.NoError(t, err)
	require.True(t, rejected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryRejectAlreadyFinal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE course_uploads SET status").
		WithArgs("u1", models.UploadStatusRejected, "admin", sqlmock.AnyArg(), "late", models.UploadStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	rejected, err := repo.RejectWithSeatRelease(context.Background(), "u1", "admin", "late", "c1")
	require.NoError(t, err)
	require.False(t, rejected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryDeleteWithSeatRelease(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_uploads WHERE id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_students = current_students - 1, updated_at = $2 WHERE id = $1 AND current_students > 0")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteWithSeatRelease(context.Background(), "u1", "c1", true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryDeleteWithoutSeatRelease(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_uploads WHERE id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteWithSeatRelease(context.Background(), "u1", "c1", false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	rows := sqlmock.NewRows([]string{"?column?"}).AddRow(1)
	mock.ExpectQuery("SELECT 1 FROM course_uploads").
		WithArgs("s1", "c1", "sem1", models.UploadStatusRejected).
		WillReturnRows(rows)

	exists, err := repo.ExistsActive(context.Background(), "s1", "c1", "sem1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUploadRepositoryExistsActiveNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseUploadRepository(db)

	mock.ExpectQuery("SELECT 1 FROM course_uploads").
		WithArgs("s1", "c1", "sem1", models.UploadStatusRejected).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActive(context.Background(), "s1", "c1", "sem1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
