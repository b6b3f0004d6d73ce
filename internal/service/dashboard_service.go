package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/uniportal/registrar-api/internal/models"
)

type overviewProvider interface {
	Overview(ctx context.Context, semesterID string) (*models.RegistrationOverview, bool, error)
}

type inboxReader interface {
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type announcementLister interface {
	ListForRole(ctx context.Context, role models.UserRole, page, pageSize int) ([]models.Announcement, *models.Pagination, error)
}

type registrationLister interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error)
}

type pendingLister interface {
	ListPending(ctx context.Context, filter models.CourseUploadFilter) ([]models.CourseUploadDetail, *models.Pagination, error)
}

type activeSemesterReader interface {
	FindActive(ctx context.Context) (*models.Semester, error)
}

// StudentDashboard summarises the portal for a student.
type StudentDashboard struct {
	ActiveSemester      *models.Semester            `json:"active_semester,omitempty"`
	Registrations       []models.RegistrationDetail `json:"registrations"`
	UnreadNotifications int                         `json:"unread_notifications"`
	Announcements       []models.Announcement       `json:"announcements"`
}

// StaffDashboard summarises approval workload for faculty and registrars.
type StaffDashboard struct {
	ActiveSemester      *models.Semester             `json:"active_semester,omitempty"`
	Overview            *models.RegistrationOverview `json:"overview,omitempty"`
	PendingUploads      int                          `json:"pending_uploads"`
	UnreadNotifications int                          `json:"unread_notifications"`
	Announcements       []models.Announcement        `json:"announcements"`
}

// AdminDashboard extends the staff view with runtime metrics.
type AdminDashboard struct {
	StaffDashboard
	System models.SystemMetrics `json:"system"`
}

// DashboardService composes role-aware portal summaries. Every section is
// best effort: a failing section is logged and left empty rather than failing
// the whole dashboard.
type DashboardService struct {
	stats         overviewProvider
	notifications inboxReader
	announcements announcementLister
	registrations registrationLister
	approvals     pendingLister
	semesters     activeSemesterReader
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(stats overviewProvider, notifications inboxReader, announcements announcementLister, registrations registrationLister, approvals pendingLister, semesters activeSemesterReader, metrics *MetricsService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		stats:         stats,
		notifications: notifications,
		announcements: announcements,
		registrations: registrations,
		approvals:     approvals,
		semesters:     semesters,
		metrics:       metrics,
		logger:        logger,
	}
}

// Student returns the student dashboard.
func (s *DashboardService) Student(ctx context.Context, userID string) (*StudentDashboard, error) {
	dashboard := &StudentDashboard{}

	semester, err := s.semesters.FindActive(ctx)
	if err == nil {
		dashboard.ActiveSemester = semester
	}

	registrations, _, err := s.registrations.List(ctx, models.RegistrationFilter{StudentID: userID, PageSize: 10})
	if err != nil {
		s.logger.Warn("dashboard registrations unavailable", zap.String("user_id", userID), zap.Error(err))
	} else {
		dashboard.Registrations = registrations
	}

	dashboard.UnreadNotifications = s.unread(ctx, userID)
	dashboard.Announcements = s.recentAnnouncements(ctx, models.RoleStudent)
	return dashboard, nil
}

// Staff returns the approval-focused dashboard for faculty and registrars.
func (s *DashboardService) Staff(ctx context.Context, userID string, role models.UserRole) (*StaffDashboard, error) {
	dashboard := &StaffDashboard{}

	semester, err := s.semesters.FindActive(ctx)
	if err == nil {
		dashboard.ActiveSemester = semester
		overview, _, err := s.stats.Overview(ctx, semester.ID)
		if err != nil {
			s.logger.Warn("dashboard overview unavailable", zap.String("semester_id", semester.ID), zap.Error(err))
		} else {
			dashboard.Overview = overview
		}
		_, pagination, err := s.approvals.ListPending(ctx, models.CourseUploadFilter{SemesterID: semester.ID, PageSize: 1})
		if err != nil {
			s.logger.Warn("dashboard pending count unavailable", zap.Error(err))
		} else if pagination != nil {
			dashboard.PendingUploads = pagination.TotalCount
		}
	}

	dashboard.UnreadNotifications = s.unread(ctx, userID)
	dashboard.Announcements = s.recentAnnouncements(ctx, role)
	return dashboard, nil
}

// Admin returns the staff dashboard plus a runtime metrics snapshot.
func (s *DashboardService) Admin(ctx context.Context, userID string) (*AdminDashboard, error) {
	staff, err := s.Staff(ctx, userID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &AdminDashboard{StaffDashboard: *staff, System: s.metrics.Snapshot()}, nil
}

func (s *DashboardService) unread(ctx context.Context, userID string) int {
	count, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		s.logger.Warn("dashboard unread count unavailable", zap.String("user_id", userID), zap.Error(err))
		return 0
	}
	return count
}

func (s *DashboardService) recentAnnouncements(ctx context.Context, role models.UserRole) []models.Announcement {
	announcements, _, err := s.announcements.ListForRole(ctx, role, 1, 5)
	if err != nil {
		s.logger.Warn("dashboard announcements unavailable", zap.Error(err))
		return nil
	}
	return announcements
}
