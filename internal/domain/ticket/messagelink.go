package ticket

import "fmt"

// MessageLink pairs a DM message with its mirrored staff-thread message.
// Rows are inserted once per relayed message and updated in place only to
// record the follow-up message posted when the DM side was edited.
type MessageLink struct {
	id                uint
	userID            int64
	dmMsgID           int64
	threadMsgID       int64
	threadUpdateMsgID *int64
}

func NewMessageLink(userID, dmMsgID, threadMsgID int64) (*MessageLink, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user id is required")
	}
	if dmMsgID == 0 {
		return nil, fmt.Errorf("dm message id is required")
	}
	if threadMsgID == 0 {
		return nil, fmt.Errorf("thread message id is required")
	}

	return &MessageLink{
		userID:      userID,
		dmMsgID:     dmMsgID,
		threadMsgID: threadMsgID,
	}, nil
}

func ReconstructMessageLink(id uint, userID, dmMsgID, threadMsgID int64, threadUpdateMsgID *int64) (*MessageLink, error) {
	if id == 0 {
		return nil, fmt.Errorf("message link id cannot be zero")
	}
	if userID == 0 || dmMsgID == 0 || threadMsgID == 0 {
		return nil, fmt.Errorf("message link ids cannot be zero")
	}
	if threadUpdateMsgID != nil && *threadUpdateMsgID == 0 {
		return nil, fmt.Errorf("thread update message id cannot be zero")
	}

	return &MessageLink{
		id:                id,
		userID:            userID,
		dmMsgID:           dmMsgID,
		threadMsgID:       threadMsgID,
		threadUpdateMsgID: threadUpdateMsgID,
	}, nil
}

func (l *MessageLink) ID() uint {
	return l.id
}

func (l *MessageLink) UserID() int64 {
	return l.userID
}

func (l *MessageLink) DMMsgID() int64 {
	return l.dmMsgID
}

func (l *MessageLink) ThreadMsgID() int64 {
	return l.threadMsgID
}

func (l *MessageLink) ThreadUpdateMsgID() *int64 {
	return l.threadUpdateMsgID
}

// Resolved returns the current staff-side representative message id: the
// follow-up edit message when one exists, otherwise the original mirror.
func (l *MessageLink) Resolved() int64 {
	if l.threadUpdateMsgID != nil {
		return *l.threadUpdateMsgID
	}
	return l.threadMsgID
}

// RecordThreadUpdate redirects future lookups to the follow-up message posted
// for a DM-side edit. The original threadMsgID is never mutated.
func (l *MessageLink) RecordThreadUpdate(updateMsgID int64) error {
	if updateMsgID == 0 {
		return fmt.Errorf("thread update message id cannot be zero")
	}
	l.threadUpdateMsgID = &updateMsgID
	return nil
}

func (l *MessageLink) SetID(id uint) error {
	if l.id != 0 {
		return fmt.Errorf("message link id is already set")
	}
	if id == 0 {
		return fmt.Errorf("message link id cannot be zero")
	}
	l.id = id
	return nil
}
