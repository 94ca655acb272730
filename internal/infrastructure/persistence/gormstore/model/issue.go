package model

type Issue struct {
	IssueID                   uint64   `gorm:"column:issue_id;primaryKey;autoIncrement"`
	ReporterID                *string  `gorm:"column:reporter_id;type:text;index"`
	Category                  string   `gorm:"column:category;type:text;not null"`
	Description               string   `gorm:"column:description;type:text;not null"`
	Latitude                  *float64 `gorm:"column:latitude"`
	Longitude                 *float64 `gorm:"column:longitude"`
	Status                    string   `gorm:"column:status;type:text;not null;index"`
	AIVerificationStatus      string   `gorm:"column:ai_verification_status;type:text;not null"`
	CitizenVerificationStatus string   `gorm:"column:citizen_verification_status;type:text;not null"`
	CrossVerificationStatus   string   `gorm:"column:cross_verification_status;type:text;not null"`
	EscalationStatus          string   `gorm:"column:escalation_status;type:text;not null;index"`
	EscalationDate            *string  `gorm:"column:escalation_date;type:text"`
	ResolutionDate            *string  `gorm:"column:resolution_date;type:text"`
	CommentCount              int64    `gorm:"column:comment_count;not null;default:0"`
	UpvoteCount               int64    `gorm:"column:upvote_count;not null;default:0"`
	Version                   int64    `gorm:"column:version;not null;default:0"`
	CreatedAt                 string   `gorm:"column:created_at;type:text;not null;index"`
	UpdatedAt                 string   `gorm:"column:updated_at;type:text;not null"`
	// LastEventAt is the created_at of the newest timeline event; appends
	// never stamp an earlier time for the same issue.
	LastEventAt string `gorm:"column:last_event_at;type:text;not null;default:''"`

	Events []TimelineEvent `gorm:"foreignKey:IssueID;references:IssueID;constraint:OnDelete:CASCADE"`
	Media  []IssueMedia    `gorm:"foreignKey:IssueID;references:IssueID;constraint:OnDelete:CASCADE"`
}

func (Issue) TableName() string {
	return "issues"
}
