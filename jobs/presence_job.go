package jobs

import (
	"context"
	"log"
	"time"

	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/realtime"
)

// Clients that vanish without closing their socket stop heartbeating;
// anyone quiet longer than this is shown offline.
const offlineAfter = 10 * time.Minute

func MarkStaleUsersOffline() {
	log.Println("Running job: MarkStaleUsersOffline...")

	cutoff := time.Now().Add(-offlineAfter)
	result := database.DB.Model(&models.User{}).
		Where("is_online = ? AND (last_seen IS NULL OR last_seen < ?)", true, cutoff).
		Update("is_online", false)
	if result.Error != nil {
		log.Printf("Error marking stale users offline: %v", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		return
	}

	log.Printf("Marked %d user(s) offline.", result.RowsAffected)
	realtime.Publish(context.Background(), realtime.TableProfiles)
}
