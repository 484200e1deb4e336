// Package journal stores relay.Entry values for later inspection.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"olafo/models"
	"olafo/relay"
)

// Database writes entries to the relay_events table.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Record(ctx context.Context, e relay.Entry) error {
	row := toModel(e)
	if err := d.db.Create(&row).Error; err != nil {
		return fmt.Errorf("journal: insert %s: %w", e.RelayID, err)
	}
	return nil
}

// Prune deletes rows created before cutoff and returns how many went away.
func (d *Database) Prune(cutoff time.Time) (int64, error) {
	res := d.db.Where("created_at < ?", cutoff).Delete(&models.Event{})
	if res.Error != nil {
		return 0, fmt.Errorf("journal: prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toModel(e relay.Entry) models.Event {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return models.Event{
		RelayID:        e.RelayID,
		Platform:       e.Event.Platform,
		SenderID:       e.Event.SenderID,
		RecipientID:    e.Event.RecipientID,
		MessageID:      e.Event.MessageID,
		Timestamp:      e.Event.Timestamp,
		Text:           e.Event.Text,
		ReplyText:      e.Reply,
		Outcome:        string(e.Outcome),
		UpstreamStatus: e.UpstreamStatus,
		CreatedAt:      &created,
	}
}
