package storage

import (
	"strings"
	"time"
)

// QueryOption narrows a Samples query.
type QueryOption func(*sampleQuery)

type sampleQuery struct {
	topics    []string
	startTime *time.Time
	endTime   *time.Time
	limit     int
}

// WithTopic restricts the result to the given topics.
func WithTopic(topics ...string) QueryOption {
	return func(q *sampleQuery) {
		q.topics = append(q.topics, topics...)
	}
}

// WithStartTime excludes samples stamped before t.
func WithStartTime(t time.Time) QueryOption {
	return func(q *sampleQuery) {
		q.startTime = &t
	}
}

// WithEndTime excludes samples stamped after t.
func WithEndTime(t time.Time) QueryOption {
	return func(q *sampleQuery) {
		q.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters. Both ends are
// inclusive.
func WithTimeRange(startTime, endTime time.Time) QueryOption {
	return func(q *sampleQuery) {
		q.startTime = &startTime
		q.endTime = &endTime
	}
}

// WithLimit caps the number of returned samples.
func WithLimit(n int) QueryOption {
	return func(q *sampleQuery) {
		q.limit = n
	}
}

func (q *sampleQuery) build(sessionID int64) (string, []any) {
	var sb strings.Builder
	args := []any{sessionID}

	sb.WriteString(selectSamplesSQL)

	if len(q.topics) > 0 {
		sb.WriteString(" AND topic IN (?")
		sb.WriteString(strings.Repeat(", ?", len(q.topics)-1))
		sb.WriteString(")")
		for _, t := range q.topics {
			args = append(args, t)
		}
	}
	if q.startTime != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, q.startTime.UTC().UnixNano())
	}
	if q.endTime != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, q.endTime.UTC().UnixNano())
	}

	sb.WriteString(" ORDER BY timestamp, id")

	if q.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.limit)
	}

	return sb.String(), args
}
