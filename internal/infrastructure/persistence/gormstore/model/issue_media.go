package model

type IssueMedia struct {
	MediaID   uint64 `gorm:"column:media_id;primaryKey;autoIncrement"`
	IssueID   uint64 `gorm:"column:issue_id;not null;index:idx_issue_media_source,priority:1"`
	Source    string `gorm:"column:source;type:text;not null;index:idx_issue_media_source,priority:2"`
	URL       string `gorm:"column:url;type:text;not null"`
	Position  int    `gorm:"column:position;not null"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
}

func (IssueMedia) TableName() string {
	return "issue_media"
}
