package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"modmail/internal/domain/ticket"
	"modmail/internal/shared/logger"
)

// TicketModel is the GORM model for the tickets table. Platform snowflakes
// are unsigned 64-bit values stored bit-for-bit in signed columns.
type TicketModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex:idx_tickets_user_id"`
	DMChannelID int64     `gorm:"column:dm_channel_id;not null;index:idx_tickets_dm_channel_id"`
	ThreadID    int64     `gorm:"column:thread_id;not null;index:idx_tickets_thread_id"`
	IsOpen      bool      `gorm:"column:is_open;not null;default:false"`
	Blocked     bool      `gorm:"column:blocked;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for GORM
func (TicketModel) TableName() string {
	return "tickets"
}

// TicketRepository implements ticket.TicketRepository on sqlite.
type TicketRepository struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewTicketRepository(db *gorm.DB, logger logger.Interface) *TicketRepository {
	return &TicketRepository{db: db, logger: logger}
}

// Create inserts a new ticket row. A second insert for the same user trips
// the unique index and is reported as ticket.ErrTicketExists so callers can
// fall back to the row the concurrent winner created.
func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	model := r.toModel(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return ticket.ErrTicketExists
		}
		return err
	}
	return nil
}

func (r *TicketRepository) GetByUser(ctx context.Context, userID int64) (*ticket.Ticket, error) {
	return r.getBy(ctx, "user_id = ?", userID)
}

func (r *TicketRepository) GetByDMChannel(ctx context.Context, dmChannelID int64) (*ticket.Ticket, error) {
	return r.getBy(ctx, "dm_channel_id = ?", dmChannelID)
}

func (r *TicketRepository) GetByThread(ctx context.Context, threadID int64) (*ticket.Ticket, error) {
	return r.getBy(ctx, "thread_id = ?", threadID)
}

func (r *TicketRepository) SetOpen(ctx context.Context, userID int64, open bool) error {
	result := r.db.WithContext(ctx).
		Model(&TicketModel{}).
		Where("user_id = ?", userID).
		Update("is_open", open)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ticket.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepository) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	result := r.db.WithContext(ctx).
		Model(&TicketModel{}).
		Where("user_id = ?", userID).
		Update("blocked", blocked)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ticket.ErrTicketNotFound
	}
	return nil
}

// DeleteByThread removes the ticket row for a deleted staff thread. Deleting
// a thread with no ticket is not an error.
func (r *TicketRepository) DeleteByThread(ctx context.Context, threadID int64) error {
	return r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Delete(&TicketModel{}).Error
}

func (r *TicketRepository) getBy(ctx context.Context, cond string, arg int64) (*ticket.Ticket, error) {
	var model TicketModel
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ticket.ErrTicketNotFound
		}
		return nil, err
	}
	return r.toDomain(&model)
}

func (r *TicketRepository) toModel(t *ticket.Ticket) *TicketModel {
	return &TicketModel{
		UserID:      t.UserID(),
		DMChannelID: t.DMChannelID(),
		ThreadID:    t.ThreadID(),
		IsOpen:      t.IsOpen(),
		Blocked:     t.Blocked(),
	}
}

func (r *TicketRepository) toDomain(model *TicketModel) (*ticket.Ticket, error) {
	return ticket.ReconstructTicket(model.UserID, model.DMChannelID, model.ThreadID, model.IsOpen, model.Blocked)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
