package model

type TimelineEvent struct {
	EventID     uint64  `gorm:"column:event_id;primaryKey;autoIncrement"`
	IssueID     uint64  `gorm:"column:issue_id;not null;index:idx_timeline_issue_order,priority:1"`
	EventType   string  `gorm:"column:event_type;type:text;not null"`
	ActorType   string  `gorm:"column:actor_type;type:text;not null"`
	ActorID     *string `gorm:"column:actor_id;type:text"`
	Description string  `gorm:"column:description;type:text;not null"`
	Metadata    *string `gorm:"column:metadata;type:text"`
	ImageURLs   *string `gorm:"column:image_urls;type:text"`
	CreatedAt   string  `gorm:"column:created_at;type:text;not null;index:idx_timeline_issue_order,priority:2"`
}

func (TimelineEvent) TableName() string {
	return "timeline_events"
}
