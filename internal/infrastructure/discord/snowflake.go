package discord

import (
	"fmt"
	"strconv"
	"time"
)

// discordEpoch is the platform's snowflake epoch in milliseconds.
const discordEpoch = 1420070400000

// Snowflake is a platform identifier. The wire format is a decimal string;
// the value is an unsigned 64-bit integer. Zero is not a valid identifier.
type Snowflake uint64

func ParseSnowflake(s string) (Snowflake, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("snowflake cannot be zero")
	}
	return Snowflake(v), nil
}

// SnowflakeFromInt64 reinterprets a stored signed value as a snowflake.
// Identifiers are persisted as signed 64-bit integers bit-for-bit.
func SnowflakeFromInt64(v int64) Snowflake {
	return Snowflake(uint64(v))
}

// Int64 returns the snowflake reinterpreted as a signed 64-bit integer for
// storage. The round trip through SnowflakeFromInt64 is lossless.
func (s Snowflake) Int64() int64 {
	return int64(uint64(s))
}

func (s Snowflake) IsZero() bool {
	return s == 0
}

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Timestamp returns the creation time encoded in the snowflake.
func (s Snowflake) Timestamp() time.Time {
	ms := int64(uint64(s)>>22) + discordEpoch
	return time.UnixMilli(ms)
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Snowflake) UnmarshalJSON(data []byte) error {
	str := string(data)
	if str == "null" {
		*s = 0
		return nil
	}
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snowflake %q: %w", str, err)
	}
	*s = Snowflake(v)
	return nil
}
