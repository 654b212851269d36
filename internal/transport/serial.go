package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.bug.st/serial"
)

// PortOptions are the serial line parameters of a SerialSource.
type PortOptions struct {
	BaudRate int    `yaml:"baudRate"`
	DataBits int    `yaml:"dataBits"`
	StopBits int    `yaml:"stopBits"`
	Parity   string `yaml:"parity"`
}

// SerialMode validates the options, applies defaults (57600 8N1) and converts
// them to the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	mode := serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
	}

	if mode.BaudRate <= 0 {
		mode.BaudRate = 57600
	}

	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if mode.DataBits < 5 || mode.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d: must be between 5 and 8", mode.DataBits)
	}

	switch o.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", o.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(o.Parity)) {
	case "", "N", "NONE":
		mode.Parity = serial.NoParity
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity '%s': expected N, E, or O", o.Parity)
	}

	return &mode, nil
}

type portOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

func openSerialPort(path string, mode *serial.Mode) (io.ReadCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialSource reads envelopes from a serial port, typically a companion
// computer link.
type SerialSource struct {
	name string
	path string
	port PortOptions
	open portOpener
	opts lineOptions
}

// NewSerialSource creates a SerialSource for the port at path
func NewSerialSource(name, path string, port PortOptions, options ...Option) *SerialSource {
	return &SerialSource{
		name: name,
		path: path,
		port: port,
		open: openSerialPort,
		opts: newLineOptions(name, "serial", options),
	}
}

func (s *SerialSource) Name() string {
	return s.name
}

// Run opens the port and reads it until ctx is cancelled or the port fails.
func (s *SerialSource) Run(ctx context.Context, handle LineHandler) error {
	mode, err := s.port.SerialMode()
	if err != nil {
		return fmt.Errorf("invalid serial options: %w", err)
	}

	port, err := s.open(s.path, mode)
	if err != nil {
		return fmt.Errorf("opening serial port '%s': %w", s.path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-ctx.Done()
		if err := port.Close(); err != nil {
			s.opts.logger.Warn(fmt.Sprintf("error closing serial port: %s", err.Error()))
		}
	}()

	s.opts.logger.Info("reading serial port...", slog.String("port", s.path), slog.Int("baudRate", mode.BaudRate))

	err = s.opts.readLines(ctx, port, handle)

	cancel()
	<-closed

	s.opts.logger.Info("serial port closed")

	return err
}
