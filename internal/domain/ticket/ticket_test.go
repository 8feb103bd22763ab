package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicket(t *testing.T) {
	t.Run("valid ids", func(t *testing.T) {
		tk, err := NewTicket(1, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(1), tk.UserID())
		assert.Equal(t, int64(2), tk.DMChannelID())
		assert.Equal(t, int64(3), tk.ThreadID())
		assert.False(t, tk.IsOpen())
		assert.False(t, tk.Blocked())
	})

	t.Run("zero ids rejected", func(t *testing.T) {
		_, err := NewTicket(0, 2, 3)
		assert.Error(t, err)
		_, err = NewTicket(1, 0, 3)
		assert.Error(t, err)
		_, err = NewTicket(1, 2, 0)
		assert.Error(t, err)
	})
}

func TestTicketOpenClose(t *testing.T) {
	tk, err := NewTicket(1, 2, 3)
	require.NoError(t, err)

	tk.Open()
	assert.True(t, tk.IsOpen())
	tk.Open()
	assert.True(t, tk.IsOpen())

	tk.Close()
	assert.False(t, tk.IsOpen())

	tk.Block()
	assert.True(t, tk.Blocked())
	assert.False(t, tk.IsOpen(), "blocked is orthogonal to open/closed")
}

func TestMessageLinkResolved(t *testing.T) {
	link, err := NewMessageLink(1, 5, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(101), link.Resolved())

	require.NoError(t, link.RecordThreadUpdate(102))
	assert.Equal(t, int64(102), link.Resolved(), "edit redirects lookups to the follow-up message")
	assert.Equal(t, int64(101), link.ThreadMsgID(), "original mirror id is never mutated")

	require.NoError(t, link.RecordThreadUpdate(103))
	assert.Equal(t, int64(103), link.Resolved())
}

func TestMessageLinkValidation(t *testing.T) {
	_, err := NewMessageLink(0, 5, 101)
	assert.Error(t, err)

	link, err := NewMessageLink(1, 5, 101)
	require.NoError(t, err)
	assert.Error(t, link.RecordThreadUpdate(0))

	zero := int64(0)
	_, err = ReconstructMessageLink(1, 1, 5, 101, &zero)
	assert.Error(t, err, "zero is not a valid identifier on read")
}
