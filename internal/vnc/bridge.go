package vnc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"go.uber.org/zap"
)

const (
	statusDisconnected = "Disconnected"
	statusFailed       = "Something went wrong, connection is closed"
	statusCredentials  = "Credentials are required"
)

// StatusLine is a single line of status text. With inPlace set, each update
// redraws the line on a terminal instead of appending a new one.
type StatusLine struct {
	w       io.Writer
	inPlace bool

	mu   sync.Mutex
	text string
}

// NewStatusLine creates a status line writing to w.
func NewStatusLine(w io.Writer, inPlace bool) *StatusLine {
	return &StatusLine{w: w, inPlace: inPlace}
}

// Set replaces the status text.
func (s *StatusLine) Set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	if s.inPlace {
		fmt.Fprintf(s.w, "\r\033[2K%s", text)
		return
	}
	fmt.Fprintln(s.w, text)
}

// Text returns the current status text.
func (s *StatusLine) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Bridge owns one remote desktop session and mirrors its lifecycle onto a
// status line.
type Bridge struct {
	endpoint string
	client   Client
	status   *StatusLine
	options  Options
	log      *logging.Logger

	mu          sync.Mutex
	desktopName string
}

// NewBridge creates a bridge. Nothing happens until Run.
func NewBridge(endpoint string, client Client, status *StatusLine, opts Options, log *logging.Logger) *Bridge {
	return &Bridge{
		endpoint: endpoint,
		client:   client,
		status:   status,
		options:  opts,
		log:      log.Named("bridge").With(zap.String("endpoint", endpoint)),
	}
}

// Run connects and relays events until the session ends or ctx is done.
// A session that needs credentials fails with ErrCredentialsRequired.
func (b *Bridge) Run(ctx context.Context) error {
	b.status.Set("Connecting to " + b.endpoint)

	events := make(chan Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- b.client.Run(ctx, events)
		close(events)
	}()

	for ev := range events {
		b.handle(ev)
	}
	return <-done
}

// SendCtrlAltDel forwards the key sequence to the remote desktop.
func (b *Bridge) SendCtrlAltDel() error {
	if err := b.client.SendCtrlAltDel(); err != nil {
		return fmt.Errorf("send ctrl+alt+del: %w", err)
	}
	b.log.Info("Sent Ctrl+Alt+Del")
	return nil
}

// DesktopName returns the name reported by the server, if any.
func (b *Bridge) DesktopName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.desktopName
}

func (b *Bridge) handle(ev Event) {
	b.log.Debug("RFB event", zap.Stringer("event", ev.Type))

	switch ev.Type {
	case EventDesktopName:
		b.mu.Lock()
		b.desktopName = ev.Name
		b.mu.Unlock()
	case EventConnect:
		b.status.Set("Connected to " + b.DesktopName() + b.optionSuffix())
	case EventDisconnect:
		if ev.Clean {
			b.status.Set(statusDisconnected)
			return
		}
		b.log.Warn("Remote desktop connection lost", zap.Error(ev.Err))
		b.status.Set(statusFailed)
	case EventCredentialsRequired:
		b.log.Error("Remote desktop requires credentials")
		b.status.Set(statusCredentials)
	}
}

func (b *Bridge) optionSuffix() string {
	var opts []string
	if b.options.ViewOnly {
		opts = append(opts, "view only")
	}
	if b.options.Scale {
		opts = append(opts, "scaled")
	}
	if len(opts) == 0 {
		return ""
	}
	return " (" + strings.Join(opts, ", ") + ")"
}
