package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/skyplayer/internal/models"
)

// AllMigrations returns every migration in order.
//   - 001: playback_sessions table
func AllMigrations() []Migration {
	return []Migration{
		migration001PlaybackSessions(),
	}
}

func migration001PlaybackSessions() Migration {
	return Migration{
		Version:     "001",
		Description: "Create playback_sessions",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.PlaybackSession{})
		},
	}
}
