package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"modmail/internal/domain/ticket"
	"modmail/internal/shared/logger"
)

// MessageLinkModel is the GORM model for the message_links table.
type MessageLinkModel struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	UserID            int64     `gorm:"column:user_id;not null;index:idx_message_links_user_dm_msg,priority:1;index:idx_message_links_user_thread_msg,priority:1"`
	DMMsgID           int64     `gorm:"column:dm_msg_id;not null;index:idx_message_links_user_dm_msg,priority:2"`
	ThreadMsgID       int64     `gorm:"column:thread_msg_id;not null;index:idx_message_links_user_thread_msg,priority:2"`
	ThreadUpdateMsgID *int64    `gorm:"column:thread_update_msg_id"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for GORM
func (MessageLinkModel) TableName() string {
	return "message_links"
}

// MessageLinkRepository implements ticket.MessageLinkRepository on sqlite.
type MessageLinkRepository struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewMessageLinkRepository(db *gorm.DB, logger logger.Interface) *MessageLinkRepository {
	return &MessageLinkRepository{db: db, logger: logger}
}

func (r *MessageLinkRepository) Create(ctx context.Context, link *ticket.MessageLink) error {
	model := &MessageLinkModel{
		UserID:            link.UserID(),
		DMMsgID:           link.DMMsgID(),
		ThreadMsgID:       link.ThreadMsgID(),
		ThreadUpdateMsgID: link.ThreadUpdateMsgID(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	return link.SetID(model.ID)
}

func (r *MessageLinkRepository) ResolveThreadMsg(ctx context.Context, userID, dmMsgID int64) (int64, error) {
	link, err := r.latestByDMMsg(ctx, userID, dmMsgID)
	if err != nil {
		return 0, err
	}
	return link.Resolved(), nil
}

func (r *MessageLinkRepository) ResolveDMMsg(ctx context.Context, userID, threadMsgID int64) (int64, error) {
	var model MessageLinkModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_msg_id = ?", userID, threadMsgID).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ticket.ErrMessageLinkNotFound
		}
		return 0, err
	}
	if model.DMMsgID == 0 {
		return 0, errors.New("invalid zero dm message id in message link")
	}
	return model.DMMsgID, nil
}

func (r *MessageLinkRepository) RecordThreadUpdate(ctx context.Context, userID, dmMsgID, updateMsgID int64) error {
	result := r.db.WithContext(ctx).
		Model(&MessageLinkModel{}).
		Where("user_id = ? AND dm_msg_id = ?", userID, dmMsgID).
		Update("thread_update_msg_id", updateMsgID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ticket.ErrMessageLinkNotFound
	}
	return nil
}

// DeleteResolving removes the newest link for (userID, dmMsgID) inside one
// transaction and returns the staff-side message id that link resolved to,
// so the caller never re-reads a mapping a concurrent edit may have moved.
func (r *MessageLinkRepository) DeleteResolving(ctx context.Context, userID, dmMsgID int64) (int64, error) {
	var resolved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model MessageLinkModel
		err := tx.Where("user_id = ? AND dm_msg_id = ?", userID, dmMsgID).
			Order("id DESC").
			First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ticket.ErrMessageLinkNotFound
			}
			return err
		}

		link, err := r.toDomain(&model)
		if err != nil {
			return err
		}
		resolved = link.Resolved()

		return tx.Delete(&MessageLinkModel{}, model.ID).Error
	})
	if err != nil {
		return 0, err
	}
	return resolved, nil
}

func (r *MessageLinkRepository) latestByDMMsg(ctx context.Context, userID, dmMsgID int64) (*ticket.MessageLink, error) {
	var model MessageLinkModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND dm_msg_id = ?", userID, dmMsgID).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ticket.ErrMessageLinkNotFound
		}
		return nil, err
	}
	return r.toDomain(&model)
}

func (r *MessageLinkRepository) toDomain(model *MessageLinkModel) (*ticket.MessageLink, error) {
	return ticket.ReconstructMessageLink(model.ID, model.UserID, model.DMMsgID, model.ThreadMsgID, model.ThreadUpdateMsgID)
}
