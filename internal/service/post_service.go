package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smms/internal/clock"
	"github.com/smms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrPostImmutable    = errors.New("published posts cannot be modified")
	ErrPostConflict     = errors.New("post was modified concurrently")
	ErrInvalidSchedule  = errors.New("invalid scheduled time")
	ErrInvalidStatus    = errors.New("invalid post status")
	ErrContentRequired  = errors.New("content is required")
	ErrContentTooLong   = errors.New("content exceeds 5000 characters")
	ErrTitleTooLong     = errors.New("title exceeds 200 characters")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrScheduleRequired = fmt.Errorf("%w: scheduled time is required", ErrInvalidSchedule)
	ErrScheduleFormat   = fmt.Errorf("%w: expected format YYYY-MM-DDTHH:MM:SS", ErrInvalidSchedule)
	ErrScheduleInPast   = fmt.Errorf("%w: scheduled time must be in the future", ErrInvalidSchedule)
)

// mutableStatuses 是允许编辑、排期、删除与发布的状态。
var mutableStatuses = []string{db.PostStatusDraft, db.PostStatusScheduled}

// PostService enforces post lifecycle transitions and ownership.
// Every write is a conditional update on id, owner and a mutable status,
// so a concurrent publish scan can never be overwritten.
type PostService struct {
	store *db.PostStore
	clock clock.Clock
}

// PostInput represents fields accepted when creating a post.
type PostInput struct {
	Title         string
	Content       string
	ImagePath     string
	Status        string
	ScheduledTime string
}

// PostUpdate carries the fields an edit wants to change. Nil means keep.
// A non-nil empty ImagePath removes the image.
type PostUpdate struct {
	Title         *string
	Content       *string
	ImagePath     *string
	Status        *string
	ScheduledTime *string
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB, clk clock.Clock) *PostService {
	if clk == nil {
		clk = clock.System{}
	}
	return &PostService{store: db.NewPostStore(gdb), clock: clk}
}

// Create validates input and inserts a post in draft, scheduled or published state.
func (s *PostService) Create(ctx context.Context, ownerID uint, input PostInput) (*db.Post, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	content, err := validateContent(input.Content)
	if err != nil {
		return nil, err
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = db.PostStatusDraft
	}
	if !db.ValidPostStatus(status) {
		return nil, ErrInvalidStatus
	}

	now := s.clock.Now()
	post := db.Post{
		UserID:    ownerID,
		Title:     title,
		Content:   content,
		ImagePath: strings.TrimSpace(input.ImagePath),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch status {
	case db.PostStatusScheduled:
		scheduled, err := s.validateSchedule(input.ScheduledTime)
		if err != nil {
			return nil, err
		}
		post.ScheduledTime = &scheduled
	case db.PostStatusPublished:
		post.PublishedAt = &now
	}

	if err := s.store.Insert(ctx, &post); err != nil {
		return nil, storeError(err)
	}
	return &post, nil
}

// Schedule moves a draft or scheduled post to scheduled at a future time.
func (s *PostService) Schedule(ctx context.Context, postID, requesterID uint, scheduledTime string) (*db.Post, error) {
	if _, err := s.loadMutable(ctx, postID, requesterID); err != nil {
		return nil, err
	}

	scheduled, err := s.validateSchedule(scheduledTime)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, postID, requesterID, map[string]interface{}{
		"status":         db.PostStatusScheduled,
		"scheduled_time": scheduled,
		"updated_at":     s.clock.Now(),
	})
}

// Edit updates a draft or scheduled post. The resulting status may differ
// from the current one; a scheduled result is validated like Schedule.
func (s *PostService) Edit(ctx context.Context, postID, requesterID uint, update PostUpdate) (*db.Post, error) {
	current, err := s.loadMutable(ctx, postID, requesterID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	fields := map[string]interface{}{"updated_at": now}

	if update.Title != nil {
		title, err := validateTitle(*update.Title)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if update.Content != nil {
		content, err := validateContent(*update.Content)
		if err != nil {
			return nil, err
		}
		fields["content"] = content
	}
	if update.ImagePath != nil {
		fields["image_path"] = strings.TrimSpace(*update.ImagePath)
	}

	status := current.Status
	if update.Status != nil && strings.TrimSpace(*update.Status) != "" {
		status = strings.TrimSpace(*update.Status)
		if !db.ValidPostStatus(status) {
			return nil, ErrInvalidStatus
		}
	}
	fields["status"] = status

	switch status {
	case db.PostStatusScheduled:
		raw := current.ScheduledTimeValue()
		if update.ScheduledTime != nil {
			raw = *update.ScheduledTime
		}
		scheduled, err := s.validateSchedule(raw)
		if err != nil {
			return nil, err
		}
		fields["scheduled_time"] = scheduled
	case db.PostStatusDraft:
		fields["scheduled_time"] = nil
	case db.PostStatusPublished:
		fields["published_at"] = now
	}

	return s.apply(ctx, postID, requesterID, fields)
}

// Delete removes a draft or scheduled post and returns the removed row.
func (s *PostService) Delete(ctx context.Context, postID, requesterID uint) (*db.Post, error) {
	current, err := s.loadMutable(ctx, postID, requesterID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.DeleteWhere(ctx, db.PostCondition{
		ID:       postID,
		OwnerID:  requesterID,
		Statuses: mutableStatuses,
	})
	if err != nil {
		return nil, storeError(err)
	}
	if rows == 0 {
		return nil, s.diagnose(ctx, postID, requesterID)
	}
	return current, nil
}

// Publish publishes a single draft or scheduled post immediately.
// The scheduled time, if any, is kept as a record of the original plan.
func (s *PostService) Publish(ctx context.Context, postID, requesterID uint) (*db.Post, error) {
	if _, err := s.loadMutable(ctx, postID, requesterID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return s.apply(ctx, postID, requesterID, map[string]interface{}{
		"status":       db.PostStatusPublished,
		"published_at": now,
		"updated_at":   now,
	})
}

// Get returns a post visible to the requester: published posts are public,
// anything else only to its owner.
func (s *PostService) Get(ctx context.Context, postID, requesterID uint) (*db.Post, error) {
	post, err := s.store.GetWithAuthor(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, storeError(err)
	}
	if !post.IsPublished() && post.UserID != requesterID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// GetOwned returns a post only if it belongs to the requester.
func (s *PostService) GetOwned(ctx context.Context, postID, requesterID uint) (*db.Post, error) {
	post, err := s.store.Get(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, storeError(err)
	}
	if post.UserID != requesterID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// List returns the requester's posts filtered by status. An empty status lists everything.
func (s *PostService) List(ctx context.Context, ownerID uint, status string) ([]db.Post, error) {
	status = strings.TrimSpace(status)
	var statuses []string
	if status != "" {
		if !db.ValidPostStatus(status) {
			return nil, ErrInvalidStatus
		}
		statuses = []string{status}
	}
	posts, err := s.store.ListByOwner(ctx, ownerID, statuses)
	if err != nil {
		return nil, storeError(err)
	}
	return posts, nil
}

// ListDrafts returns the requester's drafts, newest first.
func (s *PostService) ListDrafts(ctx context.Context, ownerID uint) ([]db.Post, error) {
	return s.List(ctx, ownerID, db.PostStatusDraft)
}

// ListSchedule returns scheduled and published posts ordered by scheduled time, latest first.
func (s *PostService) ListSchedule(ctx context.Context, ownerID uint) ([]db.Post, error) {
	posts, err := s.store.ListByOwner(ctx, ownerID,
		[]string{db.PostStatusScheduled, db.PostStatusPublished},
		"scheduled_time desc", "id desc")
	if err != nil {
		return nil, storeError(err)
	}
	return posts, nil
}

func (s *PostService) validateSchedule(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrScheduleRequired
	}
	scheduled, err := clock.Normalize(raw)
	if err != nil {
		return "", ErrScheduleFormat
	}
	if scheduled <= clock.NowString(s.clock) {
		return "", ErrScheduleInPast
	}
	return scheduled, nil
}

// loadMutable reads the post and checks ownership before status, so a
// non-owner always sees ErrPostNotFound.
func (s *PostService) loadMutable(ctx context.Context, postID, requesterID uint) (*db.Post, error) {
	post, err := s.GetOwned(ctx, postID, requesterID)
	if err != nil {
		return nil, err
	}
	if post.IsPublished() {
		return nil, ErrPostImmutable
	}
	return post, nil
}

func (s *PostService) apply(ctx context.Context, postID, requesterID uint, fields map[string]interface{}) (*db.Post, error) {
	var updated *db.Post
	err := s.store.Transaction(ctx, func(store *db.PostStore) error {
		rows, err := store.UpdateWhere(ctx, db.PostCondition{
			ID:       postID,
			OwnerID:  requesterID,
			Statuses: mutableStatuses,
		}, fields)
		if err != nil {
			return storeError(err)
		}
		if rows == 0 {
			return errNoRowsChanged
		}
		updated, err = store.Get(ctx, postID)
		if err != nil {
			return storeError(err)
		}
		return nil
	})
	if errors.Is(err, errNoRowsChanged) {
		return nil, s.diagnose(ctx, postID, requesterID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

var errNoRowsChanged = errors.New("no rows changed")

// diagnose explains why a conditional write matched nothing.
func (s *PostService) diagnose(ctx context.Context, postID, requesterID uint) error {
	post, err := s.GetOwned(ctx, postID, requesterID)
	if err != nil {
		return err
	}
	if post.IsPublished() {
		return ErrPostImmutable
	}
	return ErrPostConflict
}

func storeError(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
