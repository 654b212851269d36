package storage

import (
	"encoding/json"
	"time"
)

// Session is one bridge run.
type Session struct {
	ID        int64
	StartTime time.Time
	RunID     string  // unique id of the run
	Source    string  // comma separated names of the enabled sources
	Config    *string // effective configuration, JSON
}

// Sample is one recorded output message.
type Sample struct {
	ID        int64
	SessionID int64
	Timestamp time.Time // header stamp, or the receive time for unstamped messages
	Topic     string
	FrameID   string
	Payload   json.RawMessage // message as published, JSON
}

type sampleData struct {
	SessionID int64
	Timestamp int64
	Topic     string
	FrameID   string
	Payload   string
}
