package ticket

import (
	"context"
	"errors"
)

var (
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketExists        = errors.New("ticket already exists for user")
	ErrMessageLinkNotFound = errors.New("message link not found")
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *Ticket) error
	GetByUser(ctx context.Context, userID int64) (*Ticket, error)
	GetByDMChannel(ctx context.Context, dmChannelID int64) (*Ticket, error)
	GetByThread(ctx context.Context, threadID int64) (*Ticket, error)
	SetOpen(ctx context.Context, userID int64, open bool) error
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	DeleteByThread(ctx context.Context, threadID int64) error
}

type MessageLinkRepository interface {
	Create(ctx context.Context, link *MessageLink) error

	// ResolveThreadMsg returns the current staff-side representative message
	// id for a DM message. When several rows match, the most recently
	// inserted one wins.
	ResolveThreadMsg(ctx context.Context, userID, dmMsgID int64) (int64, error)

	// ResolveDMMsg returns the DM message id mirrored by a staff-thread
	// message. Most recently inserted row wins.
	ResolveDMMsg(ctx context.Context, userID, threadMsgID int64) (int64, error)

	// RecordThreadUpdate sets the follow-up message id on the link for
	// (userID, dmMsgID). It never changes the original thread message id.
	RecordThreadUpdate(ctx context.Context, userID, dmMsgID, updateMsgID int64) error

	// DeleteResolving removes the link for (userID, dmMsgID) and returns the
	// resolved staff-side message id from the row that was deleted, so the
	// caller annotates exactly the message the mapping pointed at.
	DeleteResolving(ctx context.Context, userID, dmMsgID int64) (int64, error)
}
