package discord

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeInt64RoundTrip(t *testing.T) {
	t.Run("should survive values above the signed range", func(t *testing.T) {
		original := Snowflake(18446744073709551000)
		stored := original.Int64()
		assert.Negative(t, stored)
		assert.Equal(t, original, SnowflakeFromInt64(stored))
	})

	t.Run("should keep ordinary ids unchanged", func(t *testing.T) {
		original := Snowflake(1234567890123456789)
		assert.Equal(t, original, SnowflakeFromInt64(original.Int64()))
	})
}

func TestParseSnowflake(t *testing.T) {
	t.Run("should parse a decimal id", func(t *testing.T) {
		s, err := ParseSnowflake("81384788765712384")
		require.NoError(t, err)
		assert.Equal(t, Snowflake(81384788765712384), s)
	})

	t.Run("should reject zero", func(t *testing.T) {
		_, err := ParseSnowflake("0")
		assert.Error(t, err)
	})

	t.Run("should reject non-numeric input", func(t *testing.T) {
		_, err := ParseSnowflake("abc")
		assert.Error(t, err)
	})
}

func TestSnowflakeJSON(t *testing.T) {
	t.Run("should marshal as a string", func(t *testing.T) {
		data, err := json.Marshal(Snowflake(42))
		require.NoError(t, err)
		assert.Equal(t, `"42"`, string(data))
	})

	t.Run("should unmarshal quoted and bare values", func(t *testing.T) {
		var s Snowflake
		require.NoError(t, json.Unmarshal([]byte(`"99"`), &s))
		assert.Equal(t, Snowflake(99), s)

		require.NoError(t, json.Unmarshal([]byte(`99`), &s))
		assert.Equal(t, Snowflake(99), s)
	})

	t.Run("should treat null as zero", func(t *testing.T) {
		var s Snowflake
		require.NoError(t, json.Unmarshal([]byte(`null`), &s))
		assert.True(t, s.IsZero())
	})
}

func TestDecodeEvent(t *testing.T) {
	t.Run("should decode a message create", func(t *testing.T) {
		raw := []byte(`{"id":"5","channel_id":"10","author":{"id":"7","username":"ferris"},"content":"hello"}`)
		ev, err := DecodeEvent(EventMessageCreate, raw)
		require.NoError(t, err)
		require.NotNil(t, ev.MessageCreate)
		assert.Equal(t, EventMessageCreate, ev.Kind)
		assert.Equal(t, Snowflake(5), ev.MessageCreate.ID)
		assert.Equal(t, "ferris", ev.MessageCreate.Author.Username)
	})

	t.Run("should skip unknown event names", func(t *testing.T) {
		ev, err := DecodeEvent("PRESENCE_UPDATE", []byte(`{}`))
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("should surface malformed payloads", func(t *testing.T) {
		_, err := DecodeEvent(EventMessageDelete, []byte(`{"id":`))
		assert.Error(t, err)
	})
}

func TestCache(t *testing.T) {
	t.Run("should return copies of cached members", func(t *testing.T) {
		c := NewCache()
		c.Update(&Event{
			Kind: EventGuildMembersChunk,
			GuildMembersChunk: &GuildMembersChunkEvent{
				GuildID: 1,
				Members: []Member{{User: &User{ID: 7, Username: "ferris"}, Roles: []Snowflake{3}}},
			},
		})

		m, ok := c.Member(1, 7)
		require.True(t, ok)
		m.User.Username = "mutated"
		m.Roles[0] = 99

		again, ok := c.Member(1, 7)
		require.True(t, ok)
		assert.Equal(t, "ferris", again.User.Username)
		assert.Equal(t, Snowflake(3), again.Roles[0])
	})

	t.Run("should drop members on leave but keep the user", func(t *testing.T) {
		c := NewCache()
		c.Update(&Event{
			Kind:      EventGuildMemberAdd,
			MemberAdd: &GuildMemberAddEvent{GuildID: 1, Member: Member{User: &User{ID: 7, Username: "ferris"}}},
		})
		c.Update(&Event{
			Kind:         EventGuildMemberRemove,
			MemberRemove: &GuildMemberRemoveEvent{GuildID: 1, User: User{ID: 7, Username: "ferris"}},
		})

		_, ok := c.Member(1, 7)
		assert.False(t, ok)
		u, ok := c.User(7)
		require.True(t, ok)
		assert.Equal(t, "ferris", u.Username)
	})
}
