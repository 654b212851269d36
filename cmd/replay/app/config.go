package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

type Config struct {
	DBPath       string
	SessionID    int64
	List         bool
	OutputFile   string // stdout when empty
	Format       transport.Format
	Topics       []string
	MinTimestamp *time.Time
	MaxTimestamp *time.Time
	Limit        int
}

func NewConfig() *Config {
	return &Config{
		Format: transport.FormatJSON,
	}
}

func NewConfigFromCLI() (*Config, error) {
	return NewConfigFromArgs(os.Args[0], os.Args[1:])
}

func NewConfigFromArgs(name string, args []string) (*Config, error) {
	c := NewConfig()

	var format, topics, minTimestamp, maxTimestamp string
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 0, "Session ID")
	fs.BoolVar(&c.List, "list", false, "List recorded sessions and exit")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, stdout when omitted")
	fs.StringVar(&format, "f", string(transport.FormatJSON), "Output format. [json, cbor]")
	fs.StringVar(&topics, "topics", "", "Comma separated output topics to replay, all when omitted")
	fs.StringVar(&minTimestamp, "from", "", "Replay samples stamped at or after this time (RFC 3339)")
	fs.StringVar(&maxTimestamp, "to", "", "Replay samples stamped at or before this time (RFC 3339)")
	fs.IntVar(&c.Limit, "limit", 0, "Maximum number of samples to replay")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.Format, err = transport.ParseFormat(strings.ToLower(format)); err != nil {
		return nil, err
	}

	for _, topic := range strings.Split(topics, ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			c.Topics = append(c.Topics, topic)
		}
	}

	if c.MinTimestamp, err = parseTimestamp("from", minTimestamp); err != nil {
		return nil, err
	}
	if c.MaxTimestamp, err = parseTimestamp("to", maxTimestamp); err != nil {
		return nil, err
	}

	switch {
	case c.DBPath == "":
		err = errors.New("db path is required")
	case !c.List && c.SessionID <= 0:
		err = errors.New("session id is required")
	case c.Limit < 0:
		err = errors.New("limit must not be negative")
	case c.MinTimestamp != nil && c.MaxTimestamp != nil && c.MaxTimestamp.Before(*c.MinTimestamp):
		err = errors.New("'to' must not be before 'from'")
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

func parseTimestamp(flagName, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("invalid '%s' timestamp: %w", flagName, err)
	}
	return &t, nil
}
