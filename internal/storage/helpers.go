package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toSampleData(sessionID int64, s *Sample) *sampleData {
	return &sampleData{
		SessionID: sessionID,
		Timestamp: s.Timestamp.UTC().UnixNano(),
		Topic:     s.Topic,
		FrameID:   s.FrameID,
		Payload:   string(s.Payload),
	}
}

func toConfigData(config any) (sql.NullString, error) {
	var configData sql.NullString

	switch c := config.(type) {
	case nil:
		return configData, nil

	case string:
		configData.String = c

	case []byte:
		configData.String = string(c)

	default:
		p, err := json.Marshal(config)
		if err != nil {
			return configData, fmt.Errorf("marshaling config: %w", err)
		}
		configData.String = string(p)
	}

	configData.Valid = true
	return configData, nil
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
