package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/infrastructure/persistence/gormstore/model"
	"civicfix/internal/ports"
)

type TimelineRepository struct {
	base
	now func() time.Time
}

var _ ports.TimelineRepository = (*TimelineRepository)(nil)

func NewTimelineRepository(db *gorm.DB) *TimelineRepository {
	return &TimelineRepository{base: base{db: db}, now: time.Now}
}

// AppendEvent writes one immutable event. created_at is assigned here and
// clamped so it never precedes the issue's previous event.
func (r *TimelineRepository) AppendEvent(ctx context.Context, input ports.TimelineEventCreate) (timeline.Event, error) {
	if !input.Type.Valid() {
		return timeline.Event{}, errs.WithKind(errs.Wrapf(timeline.ErrUnknownEventType, "append %q", input.Type), errs.KindValidation)
	}
	if !input.ActorType.Valid() {
		return timeline.Event{}, errs.WithKind(errs.Wrapf(timeline.ErrUnknownActorType, "append %q", input.ActorType), errs.KindValidation)
	}
	description, err := timeline.NormalizeDescription(input.Description)
	if err != nil {
		return timeline.Event{}, errs.WithKind(err, errs.KindValidation)
	}

	metadata, err := encodeJSON(input.Metadata, len(input.Metadata) == 0)
	if err != nil {
		return timeline.Event{}, errs.WithKind(errs.Wrap(err, "encode metadata"), errs.KindValidation)
	}
	imageURLs, err := encodeJSON(input.ImageURLs, len(input.ImageURLs) == 0)
	if err != nil {
		return timeline.Event{}, errs.WithKind(errs.Wrap(err, "encode image urls"), errs.KindValidation)
	}

	var row model.TimelineEvent
	if err := r.inTx(ctx, func(_ context.Context, db *gorm.DB) error {
		var issue model.Issue
		if err := db.Select("issue_id", "last_event_at").Where("issue_id = ?", input.IssueID).Take(&issue).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.WithKind(ports.ErrIssueNotFound, errs.KindNotFound)
			}
			return errs.Wrap(err, "query issue for append")
		}

		createdAt := timeline.FormatTimestamp(r.now())
		if createdAt < issue.LastEventAt {
			createdAt = issue.LastEventAt
		}

		row = model.TimelineEvent{
			IssueID:     input.IssueID,
			EventType:   string(input.Type),
			ActorType:   string(input.ActorType),
			ActorID:     input.ActorID,
			Description: description,
			Metadata:    metadata,
			ImageURLs:   imageURLs,
			CreatedAt:   createdAt,
		}
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert timeline event")
		}

		if err := db.Model(&model.Issue{}).
			Where("issue_id = ?", input.IssueID).
			Update("last_event_at", createdAt).Error; err != nil {
			return errs.Wrap(err, "advance issue last_event_at")
		}
		return nil
	}); err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.WithKind(err, errs.KindStorage)
		}
		return timeline.Event{}, err
	}

	return mapEvent(row)
}

func (r *TimelineRepository) ListEvents(ctx context.Context, issueID uint64) ([]timeline.Event, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.TimelineEvent
	if err := db.
		Where("issue_id = ?", issueID).
		Order("created_at asc").
		Order("event_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.WithKind(errs.Wrap(err, "query timeline events"), errs.KindStorage)
	}
	return mapEvents(rows)
}

func (r *TimelineRepository) CountEvents(ctx context.Context, issueID uint64) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.TimelineEvent{}).Where("issue_id = ?", issueID).Count(&count).Error; err != nil {
		return 0, errs.WithKind(errs.Wrap(err, "count timeline events"), errs.KindStorage)
	}
	return count, nil
}

// ListEventsAfter pages through all issues' events by id, for live feeds.
func (r *TimelineRepository) ListEventsAfter(ctx context.Context, afterEventID uint64, limit int) ([]timeline.Event, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.TimelineEvent{}).Where("event_id > ?", afterEventID).Order("event_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.TimelineEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.WithKind(errs.Wrap(err, "query timeline events after"), errs.KindStorage)
	}
	return mapEvents(rows)
}

func encodeJSON(value any, empty bool) (*string, error) {
	if empty {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	text := string(raw)
	return &text, nil
}

func mapEvents(rows []model.TimelineEvent) ([]timeline.Event, error) {
	items := make([]timeline.Event, 0, len(rows))
	for _, row := range rows {
		item, err := mapEvent(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func mapEvent(row model.TimelineEvent) (timeline.Event, error) {
	createdAt, err := timeline.ParseTimestamp(row.CreatedAt)
	if err != nil {
		return timeline.Event{}, errs.Wrapf(err, "parse created_at of event %d", row.EventID)
	}

	event := timeline.Event{
		ID:          row.EventID,
		IssueID:     row.IssueID,
		Type:        timeline.EventType(row.EventType),
		ActorType:   timeline.ActorType(row.ActorType),
		ActorID:     row.ActorID,
		Description: row.Description,
		CreatedAt:   createdAt,
	}
	if row.Metadata != nil && *row.Metadata != "" {
		if err := json.Unmarshal([]byte(*row.Metadata), &event.Metadata); err != nil {
			return timeline.Event{}, errs.Wrapf(err, "decode metadata of event %d", row.EventID)
		}
	}
	if row.ImageURLs != nil && *row.ImageURLs != "" {
		if err := json.Unmarshal([]byte(*row.ImageURLs), &event.ImageURLs); err != nil {
			return timeline.Event{}, errs.Wrapf(err, "decode image urls of event %d", row.EventID)
		}
	}
	return event, nil
}
