// Package ticket holds the modmail domain model: the ticket that pairs one
// user's DM channel with one staff thread, and the message links that map a
// DM message to its mirrored staff-side message.
package ticket

import "fmt"

// Ticket is the relay session between one user and the staff team. At most
// one live ticket exists per user. A ticket is either fully initialized
// (both channel ids valid) or absent; there is no partially-created state.
type Ticket struct {
	userID      int64
	dmChannelID int64
	threadID    int64
	isOpen      bool
	blocked     bool
}

func NewTicket(userID, dmChannelID, threadID int64) (*Ticket, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user id is required")
	}
	if dmChannelID == 0 {
		return nil, fmt.Errorf("dm channel id is required")
	}
	if threadID == 0 {
		return nil, fmt.Errorf("thread id is required")
	}

	return &Ticket{
		userID:      userID,
		dmChannelID: dmChannelID,
		threadID:    threadID,
	}, nil
}

func ReconstructTicket(userID, dmChannelID, threadID int64, isOpen, blocked bool) (*Ticket, error) {
	if userID == 0 || dmChannelID == 0 || threadID == 0 {
		return nil, fmt.Errorf("ticket ids cannot be zero")
	}

	return &Ticket{
		userID:      userID,
		dmChannelID: dmChannelID,
		threadID:    threadID,
		isOpen:      isOpen,
		blocked:     blocked,
	}, nil
}

func (t *Ticket) UserID() int64 {
	return t.userID
}

func (t *Ticket) DMChannelID() int64 {
	return t.dmChannelID
}

func (t *Ticket) ThreadID() int64 {
	return t.threadID
}

func (t *Ticket) IsOpen() bool {
	return t.isOpen
}

func (t *Ticket) Blocked() bool {
	return t.blocked
}

// Open marks the ticket as actively relaying. Opening an open ticket is a no-op.
func (t *Ticket) Open() {
	t.isOpen = true
}

// Close stops relay for the ticket. Closing a closed ticket is a no-op.
func (t *Ticket) Close() {
	t.isOpen = false
}

// Block permanently suppresses relay for the ticket's user. Blocked is
// orthogonal to open/closed.
func (t *Ticket) Block() {
	t.blocked = true
}

func (t *Ticket) Unblock() {
	t.blocked = false
}
