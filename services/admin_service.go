package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/mwenda27/chat_link/cache"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/realtime"
	"gorm.io/gorm"
)

var ErrReportNotFound = errors.New("report not found")

// DashboardStats are independent counts; they may drift from each other
// under concurrent writes, which is fine for a dashboard.
type DashboardStats struct {
	Users          int64 `json:"users"`
	Messages       int64 `json:"messages"`
	Conversations  int64 `json:"conversations"`
	PendingReports int64 `json:"pending_reports"`
}

// IsAdmin is the set-membership check on user_roles. Fail-closed: a lookup
// error or missing row both mean "not admin", never an error.
func IsAdmin(userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	var count int64
	err := database.DB.Model(&models.UserRole{}).
		Where("user_id = ? AND role = ?", userID, models.RoleAdmin).
		Count(&count).Error
	if err != nil {
		log.Printf("Error checking admin role for %s: %v", userID, err)
		return false
	}
	return count > 0
}

// GetStats counts users, messages, conversations and pending reports. A
// failed count degrades to zero rather than failing the dashboard.
func GetStats(ctx context.Context) (DashboardStats, error) {
	v, err := cache.Shared.GetOrFetch(ctx, "admin:stats", func(ctx context.Context) (interface{}, error) {
		var stats DashboardStats
		countOrZero(database.DB.Model(&models.User{}), &stats.Users)
		countOrZero(database.DB.Model(&models.Message{}), &stats.Messages)
		countOrZero(database.DB.Model(&models.Conversation{}), &stats.Conversations)
		countOrZero(
			database.DB.Model(&models.ChatReport{}).Where("status = ?", models.ReportStatusPending),
			&stats.PendingReports,
		)
		return stats, nil
	})
	if err != nil {
		return DashboardStats{}, err
	}
	return v.(DashboardStats), nil
}

func countOrZero(query *gorm.DB, dst *int64) {
	if err := query.Count(dst).Error; err != nil {
		log.Printf("Error counting for dashboard stats: %v", err)
		*dst = 0
	}
}

func ListUsers() ([]models.User, error) {
	var users []models.User
	if err := database.DB.Order("created_at desc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func ListReports() ([]models.ChatReport, error) {
	var reports []models.ChatReport
	if err := database.DB.Order("created_at desc").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// CreateReport files a chat report; anyone authenticated may report.
func CreateReport(ctx context.Context, report *models.ChatReport) error {
	if err := database.DB.Create(report).Error; err != nil {
		return err
	}
	realtime.Publish(ctx, realtime.TableReports)
	return nil
}

// ResolveReport transitions a report to resolved. Resolving an already
// resolved report is a no-op success.
func ResolveReport(ctx context.Context, reportID uuid.UUID) (*models.ChatReport, error) {
	var report models.ChatReport
	if err := database.DB.First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if report.Status == models.ReportStatusResolved {
		return &report, nil
	}

	report.Status = models.ReportStatusResolved
	if err := database.DB.Model(&report).Update("status", models.ReportStatusResolved).Error; err != nil {
		return nil, err
	}
	realtime.Publish(ctx, realtime.TableReports)
	return &report, nil
}
