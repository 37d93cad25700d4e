package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed event. IDs increase in commit order.
type EventRecord struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement"`
	UID        uuid.UUID         `gorm:"type:uuid;uniqueIndex"`
	Type       string            `gorm:"size:64;index"`
	Attributes []AttributeRecord `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time         `gorm:"index"`
}

func (EventRecord) TableName() string { return "events" }

// AttributeRecord stores a single key/value pair of an event so events can be
// filtered by account or token.
type AttributeRecord struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	EventID uint64 `gorm:"index"`
	Name    string `gorm:"size:64;index:idx_attr_pair"`
	Value   string `gorm:"size:128;index:idx_attr_pair"`
}

func (AttributeRecord) TableName() string { return "event_attributes" }

// AutoMigrate performs the schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &AttributeRecord{})
}
