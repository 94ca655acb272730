package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/infrastructure/persistence/gormstore/model"
	"civicfix/internal/ports"
)

type IssueRepository struct {
	base
	now func() time.Time
}

var _ ports.IssueRepository = (*IssueRepository)(nil)

func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{base: base{db: db}, now: time.Now}
}

func (r *IssueRepository) CreateIssue(ctx context.Context, input ports.IssueCreate) (ports.Issue, error) {
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return ports.Issue{}, errs.WithKind(errors.New("category is required"), errs.KindValidation)
	}

	now := timeline.FormatTimestamp(r.now())
	snap := lifecycle.NewSnapshot()
	row := model.Issue{
		ReporterID:                input.ReporterID,
		Category:                  category,
		Description:               strings.TrimSpace(input.Description),
		Status:                    string(snap.Status),
		AIVerificationStatus:      string(snap.AIStatus),
		CitizenVerificationStatus: string(snap.CitizenStatus),
		CrossVerificationStatus:   string(snap.CrossStatus),
		EscalationStatus:          string(snap.Escalation),
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if input.Location != nil {
		lat, lng := input.Location.Latitude, input.Location.Longitude
		row.Latitude = &lat
		row.Longitude = &lng
	}

	if err := r.inTx(ctx, func(txCtx context.Context, db *gorm.DB) error {
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert issue")
		}
		return r.AddMedia(txCtx, row.IssueID, ports.MediaCitizen, input.ImageURLs)
	}); err != nil {
		return ports.Issue{}, errs.WithKind(err, errs.KindStorage)
	}

	return mapIssue(row)
}

func (r *IssueRepository) GetIssue(ctx context.Context, issueID uint64) (ports.Issue, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Issue{}, err
	}

	var row model.Issue
	if err := db.Where("issue_id = ?", issueID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Issue{}, errs.WithKind(ports.ErrIssueNotFound, errs.KindNotFound)
		}
		return ports.Issue{}, errs.WithKind(errs.Wrap(err, "query issue"), errs.KindStorage)
	}
	return mapIssue(row)
}

func (r *IssueRepository) ListIssues(ctx context.Context, filter ports.IssueFilter) ([]ports.Issue, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Issue{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.Escalation != "" {
		query = query.Where("escalation_status = ?", string(filter.Escalation))
	}
	if !filter.CreatedBefore.IsZero() {
		query = query.Where("created_at < ?", timeline.FormatTimestamp(filter.CreatedBefore))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Issue
	if err := query.Order("issue_id asc").Find(&rows).Error; err != nil {
		return nil, errs.WithKind(errs.Wrap(err, "query issues"), errs.KindStorage)
	}

	items := make([]ports.Issue, 0, len(rows))
	for _, row := range rows {
		item, err := mapIssue(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *IssueRepository) UpdateLifecycle(ctx context.Context, issueID uint64, expectedVersion int64, next lifecycle.Snapshot) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Issue{}).
		Where("issue_id = ? AND version = ?", issueID, expectedVersion).
		Updates(map[string]any{
			"status":                      string(next.Status),
			"ai_verification_status":      string(next.AIStatus),
			"citizen_verification_status": string(next.CitizenStatus),
			"cross_verification_status":   string(next.CrossStatus),
			"escalation_status":           string(next.Escalation),
			"escalation_date":             formatOptional(next.EscalationDate),
			"resolution_date":             formatOptional(next.ResolutionDate),
			"comment_count":               next.CommentCount,
			"version":                     expectedVersion + 1,
			"updated_at":                  timeline.FormatTimestamp(r.now()),
		})
	if result.Error != nil {
		return errs.WithKind(errs.Wrap(result.Error, "update issue lifecycle"), errs.KindStorage)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&model.Issue{}).Where("issue_id = ?", issueID).Count(&count).Error; err != nil {
		return errs.WithKind(errs.Wrap(err, "count issue"), errs.KindStorage)
	}
	if count == 0 {
		return errs.WithKind(ports.ErrIssueNotFound, errs.KindNotFound)
	}
	return errs.WithKind(ports.ErrVersionConflict, errs.KindConflict)
}

func (r *IssueRepository) IncrementUpvotes(ctx context.Context, issueID uint64) (int64, error) {
	var upvotes int64
	if err := r.inTx(ctx, func(_ context.Context, db *gorm.DB) error {
		result := db.Model(&model.Issue{}).
			Where("issue_id = ?", issueID).
			Update("upvote_count", gorm.Expr("upvote_count + ?", 1))
		if result.Error != nil {
			return errs.Wrap(result.Error, "increment upvotes")
		}
		if result.RowsAffected == 0 {
			return errs.WithKind(ports.ErrIssueNotFound, errs.KindNotFound)
		}

		var row model.Issue
		if err := db.Select("upvote_count").Where("issue_id = ?", issueID).Take(&row).Error; err != nil {
			return errs.Wrap(err, "read upvotes")
		}
		upvotes = row.UpvoteCount
		return nil
	}); err != nil {
		return 0, err
	}
	return upvotes, nil
}

// AddMedia appends urls after any media already stored for source.
func (r *IssueRepository) AddMedia(ctx context.Context, issueID uint64, source ports.MediaSource, urls []string) error {
	cleaned := make([]string, 0, len(urls))
	for _, raw := range urls {
		if url := strings.TrimSpace(raw); url != "" {
			cleaned = append(cleaned, url)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var existing int64
	if err := db.Model(&model.IssueMedia{}).
		Where("issue_id = ? AND source = ?", issueID, string(source)).
		Count(&existing).Error; err != nil {
		return errs.Wrap(err, "count issue media")
	}

	now := timeline.FormatTimestamp(r.now())
	rows := make([]model.IssueMedia, 0, len(cleaned))
	for i, url := range cleaned {
		rows = append(rows, model.IssueMedia{
			IssueID:   issueID,
			Source:    string(source),
			URL:       url,
			Position:  int(existing) + i,
			CreatedAt: now,
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return errs.Wrap(err, "insert issue media")
	}
	return nil
}

func (r *IssueRepository) ListMedia(ctx context.Context, issueID uint64, source ports.MediaSource) ([]string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.IssueMedia
	if err := db.
		Where("issue_id = ? AND source = ?", issueID, string(source)).
		Order("position asc").
		Find(&rows).Error; err != nil {
		return nil, errs.WithKind(errs.Wrap(err, "query issue media"), errs.KindStorage)
	}

	urls := make([]string, 0, len(rows))
	for _, row := range rows {
		urls = append(urls, row.URL)
	}
	return urls, nil
}

// DeleteIssue removes the issue with its timeline and media. It is the
// only path that deletes timeline rows.
func (r *IssueRepository) DeleteIssue(ctx context.Context, issueID uint64) error {
	return r.inTx(ctx, func(_ context.Context, db *gorm.DB) error {
		if err := db.Where("issue_id = ?", issueID).Delete(&model.TimelineEvent{}).Error; err != nil {
			return errs.Wrap(err, "delete timeline events")
		}
		if err := db.Where("issue_id = ?", issueID).Delete(&model.IssueMedia{}).Error; err != nil {
			return errs.Wrap(err, "delete issue media")
		}
		result := db.Where("issue_id = ?", issueID).Delete(&model.Issue{})
		if result.Error != nil {
			return errs.Wrap(result.Error, "delete issue")
		}
		if result.RowsAffected == 0 {
			return errs.WithKind(ports.ErrIssueNotFound, errs.KindNotFound)
		}
		return nil
	})
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := timeline.FormatTimestamp(*t)
	return &value
}

func parseOptional(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := timeline.ParseTimestamp(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func mapIssue(row model.Issue) (ports.Issue, error) {
	createdAt, err := timeline.ParseTimestamp(row.CreatedAt)
	if err != nil {
		return ports.Issue{}, errs.Wrapf(err, "parse created_at of issue %d", row.IssueID)
	}
	updatedAt, err := timeline.ParseTimestamp(row.UpdatedAt)
	if err != nil {
		return ports.Issue{}, errs.Wrapf(err, "parse updated_at of issue %d", row.IssueID)
	}
	resolutionDate, err := parseOptional(row.ResolutionDate)
	if err != nil {
		return ports.Issue{}, errs.Wrapf(err, "parse resolution_date of issue %d", row.IssueID)
	}
	escalationDate, err := parseOptional(row.EscalationDate)
	if err != nil {
		return ports.Issue{}, errs.Wrapf(err, "parse escalation_date of issue %d", row.IssueID)
	}

	issue := ports.Issue{
		IssueID:     row.IssueID,
		ReporterID:  row.ReporterID,
		Category:    row.Category,
		Description: row.Description,
		UpvoteCount: row.UpvoteCount,
		Lifecycle: lifecycle.Snapshot{
			Status:         lifecycle.Status(row.Status),
			AIStatus:       lifecycle.AIStatus(row.AIVerificationStatus),
			CitizenStatus:  lifecycle.CitizenStatus(row.CitizenVerificationStatus),
			CrossStatus:    lifecycle.CrossStatus(row.CrossVerificationStatus),
			Escalation:     lifecycle.EscalationStatus(row.EscalationStatus),
			ResolutionDate: resolutionDate,
			EscalationDate: escalationDate,
			CommentCount:   row.CommentCount,
			Version:        row.Version,
		},
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if row.Latitude != nil && row.Longitude != nil {
		issue.Location = &ports.Location{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	return issue, nil
}
