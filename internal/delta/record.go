package delta

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Amount is a money value the remote serializes inconsistently: sometimes a
// JSON number, sometimes a numeric string.
type Amount int64

// UnmarshalJSON accepts both quoted and unquoted integers.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*a = Amount(n)
	return nil
}

// Record is one entry of the match history feed.
type Record struct {
	EventTime          string `json:"dtEventTime"`
	MapID              string `json:"MapId"`
	EscapeFailReason   int    `json:"EscapeFailReason"`
	DurationS          int    `json:"DurationS"`
	KillCount          int    `json:"KillCount"`
	FinalPrice         Amount `json:"FinalPrice"`
	FlowCalGainedPrice Amount `json:"flowCalGainedPrice"`
}

// MatchID returns the opaque identity of the record. The event timestamp
// string is unique enough per account and is what the feed keys on.
func (r *Record) MatchID() string {
	return r.EventTime
}

// EscapeSucceeded reports whether the player extracted successfully.
func (r *Record) EscapeSucceeded() bool {
	return r.EscapeFailReason == 1
}

// Loss is the value lost in the raid: what was carried minus the net gain.
func (r *Record) Loss() int64 {
	return int64(r.FinalPrice) - int64(r.FlowCalGainedPrice)
}

const eventTimeLayout = "2006-01-02 15:04:05"

// ParsedEventTime parses the record timestamp in local time. The remote
// occasionally pads the colons with spaces ("2025-07-20 20: 04: 29").
func (r *Record) ParsedEventTime() (time.Time, error) {
	s := strings.ReplaceAll(r.EventTime, " : ", ":")
	s = strings.ReplaceAll(s, ": ", ":")
	t, err := time.ParseInLocation(eventTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event time %q: %w", r.EventTime, err)
	}
	return t, nil
}

// RecordFeed is the per-mode match history of an account. The remote returns
// each mode's list newest-first.
type RecordFeed struct {
	Gun []Record `json:"gun"`
	Sol []Record `json:"sol"`
}

// GetRecords fetches the recent match history for the given credentials.
func (c *Client) GetRecords(ctx context.Context, creds Credentials) (*RecordFeed, error) {
	var feed RecordFeed
	if err := c.ideRequest(ctx, "316968", "KfJNwS", creds, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}
