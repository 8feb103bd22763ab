package discord

import (
	"sync"
)

type memberKey struct {
	guildID Snowflake
	userID  Snowflake
}

// Cache holds users, guild members, and roles observed on the gateway.
// Lookups return copies; callers must not expect live views, and must copy
// what they need before any remote call rather than re-reading afterwards.
type Cache struct {
	mu      sync.RWMutex
	users   map[Snowflake]User
	members map[memberKey]Member
	roles   map[Snowflake]Role
}

func NewCache() *Cache {
	return &Cache{
		users:   make(map[Snowflake]User),
		members: make(map[memberKey]Member),
		roles:   make(map[Snowflake]Role),
	}
}

// Update ingests whatever user, member, or role state an event carries.
func (c *Cache) Update(ev *Event) {
	if ev == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case ev.Ready != nil:
		c.putUser(ev.Ready.User)
	case ev.GuildCreate != nil:
		for _, r := range ev.GuildCreate.Roles {
			c.roles[r.ID] = r
		}
		for _, m := range ev.GuildCreate.Members {
			c.putMember(ev.GuildCreate.ID, m)
		}
	case ev.GuildMembersChunk != nil:
		for _, m := range ev.GuildMembersChunk.Members {
			c.putMember(ev.GuildMembersChunk.GuildID, m)
		}
	case ev.MessageCreate != nil:
		c.putUser(ev.MessageCreate.Author)
	case ev.MessageUpdate != nil:
		c.putUser(ev.MessageUpdate.Author)
	case ev.MemberAdd != nil:
		c.putMember(ev.MemberAdd.GuildID, ev.MemberAdd.Member)
	case ev.MemberRemove != nil:
		c.putUser(ev.MemberRemove.User)
		delete(c.members, memberKey{guildID: ev.MemberRemove.GuildID, userID: ev.MemberRemove.User.ID})
	case ev.Interaction != nil:
		u := ev.Interaction.Sender()
		if !u.ID.IsZero() {
			c.users[u.ID] = u
		}
	}
}

func (c *Cache) putUser(u User) {
	if !u.ID.IsZero() {
		c.users[u.ID] = u
	}
}

func (c *Cache) putMember(guildID Snowflake, m Member) {
	if m.User == nil || m.User.ID.IsZero() {
		return
	}
	c.putUser(*m.User)
	stored := m
	u := *m.User
	stored.User = &u
	stored.Roles = append([]Snowflake(nil), m.Roles...)
	c.members[memberKey{guildID: guildID, userID: m.User.ID}] = stored
}

func (c *Cache) User(id Snowflake) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	return u, ok
}

func (c *Cache) Member(guildID, userID Snowflake) (Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.members[memberKey{guildID: guildID, userID: userID}]
	if !ok {
		return Member{}, false
	}
	out := m
	if m.User != nil {
		u := *m.User
		out.User = &u
	}
	out.Roles = append([]Snowflake(nil), m.Roles...)
	return out, true
}

func (c *Cache) Role(id Snowflake) (Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.roles[id]
	return r, ok
}
