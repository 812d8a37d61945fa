package vnc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ProtocolVersion is the only RFB version spoken.
const ProtocolVersion = "RFB 003.008\n"

const (
	securityNone    = 1
	securityVNCAuth = 2

	msgKeyEvent = 4

	keyControlL = 0xffe3
	keyAltL     = 0xffe9
	keyDelete   = 0xffff

	maxReasonLength = 1 << 16
)

var (
	ErrHandshakeMismatch   = errors.New("unexpected RFB protocol version")
	ErrCredentialsRequired = errors.New("credentials are required")
	ErrSecurityFailed      = errors.New("security handshake failed")
	ErrNotConnected        = errors.New("not connected")
)

// Client is a remote desktop connection. Run connects, emits lifecycle
// events until the session ends and returns why it ended.
type Client interface {
	Run(ctx context.Context, events chan<- Event) error
	SendCtrlAltDel() error
}

// CheckVersion verifies the server's protocol version banner.
func CheckVersion(banner []byte) error {
	if !bytes.Equal(banner, []byte(ProtocolVersion)) {
		return fmt.Errorf("%w: %q", ErrHandshakeMismatch, banner)
	}
	return nil
}

// RFBClient speaks RFB 3.8 over a websocket with security type None.
// Framebuffer updates are never requested; the session is kept for input
// and lifecycle only.
type RFBClient struct {
	URL              string
	Header           http.Header
	ViewOnly         bool
	Shared           bool
	HandshakeTimeout time.Duration
	InsecureTLS      bool

	log *logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRFBClient creates a client for endpoint. header carries the Cookie and
// Origin the proxy authenticates with.
func NewRFBClient(endpoint string, header http.Header, log *logging.Logger) *RFBClient {
	return &RFBClient{
		URL:              endpoint,
		Header:           header,
		Shared:           true,
		HandshakeTimeout: 10 * time.Second,
		log:              log.Named("rfb"),
	}
}

func (c *RFBClient) dialer() *websocket.Dialer {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.HandshakeTimeout,
		Subprotocols:     []string{"binary"},
	}
	if c.InsecureTLS {
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for lab clusters
	}
	return d
}

// Run implements Client.
func (c *RFBClient) Run(ctx context.Context, events chan<- Event) error {
	conn, resp, err := c.dialer().DialContext(ctx, c.URL, c.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial %s: %w (status %d)", c.URL, err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dial %s: %w", c.URL, err)
		}
		events <- Event{Type: EventDisconnect, Err: err}
		return err
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() { c.shutdown(conn) })
	defer stop()

	rd := &messageReader{conn: conn}
	if c.HandshakeTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.HandshakeTimeout))
	}
	name, err := c.handshake(rd)
	if err != nil {
		if errors.Is(err, ErrCredentialsRequired) {
			events <- Event{Type: EventCredentialsRequired}
			return err
		}
		if ctx.Err() != nil {
			events <- Event{Type: EventDisconnect, Clean: true}
			return nil
		}
		events <- Event{Type: EventDisconnect, Err: err}
		return err
	}

	_ = conn.SetReadDeadline(time.Time{})
	c.log.Info("RFB session established", zap.String("url", c.URL), zap.String("desktop", name))
	events <- Event{Type: EventDesktopName, Name: name}
	events <- Event{Type: EventConnect}

	err = drain(rd)
	if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		events <- Event{Type: EventDisconnect, Clean: true}
		return nil
	}
	events <- Event{Type: EventDisconnect, Err: err}
	return err
}

func (c *RFBClient) handshake(rd io.Reader) (string, error) {
	banner := make([]byte, len(ProtocolVersion))
	if _, err := io.ReadFull(rd, banner); err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}
	if err := CheckVersion(banner); err != nil {
		return "", err
	}
	if err := c.write(banner); err != nil {
		return "", fmt.Errorf("write version: %w", err)
	}

	var count uint8
	if err := binary.Read(rd, binary.BigEndian, &count); err != nil {
		return "", fmt.Errorf("read security types: %w", err)
	}
	if count == 0 {
		reason, _ := readReason(rd)
		return "", fmt.Errorf("%w: %s", ErrSecurityFailed, reason)
	}
	offered := make([]byte, count)
	if _, err := io.ReadFull(rd, offered); err != nil {
		return "", fmt.Errorf("read security types: %w", err)
	}
	switch {
	case bytes.IndexByte(offered, securityNone) >= 0:
	case bytes.IndexByte(offered, securityVNCAuth) >= 0:
		return "", ErrCredentialsRequired
	default:
		return "", fmt.Errorf("%w: unsupported security types %v", ErrSecurityFailed, offered)
	}
	if err := c.write([]byte{securityNone}); err != nil {
		return "", fmt.Errorf("write security type: %w", err)
	}

	var result uint32
	if err := binary.Read(rd, binary.BigEndian, &result); err != nil {
		return "", fmt.Errorf("read security result: %w", err)
	}
	if result != 0 {
		reason, _ := readReason(rd)
		return "", fmt.Errorf("%w: %s", ErrSecurityFailed, reason)
	}

	shared := byte(0)
	if c.Shared {
		shared = 1
	}
	if err := c.write([]byte{shared}); err != nil {
		return "", fmt.Errorf("write client init: %w", err)
	}

	var init struct {
		Width       uint16
		Height      uint16
		PixelFormat [16]byte
		NameLength  uint32
	}
	if err := binary.Read(rd, binary.BigEndian, &init); err != nil {
		return "", fmt.Errorf("read server init: %w", err)
	}
	if init.NameLength > maxReasonLength {
		return "", fmt.Errorf("desktop name too long: %d", init.NameLength)
	}
	name := make([]byte, init.NameLength)
	if _, err := io.ReadFull(rd, name); err != nil {
		return "", fmt.Errorf("read desktop name: %w", err)
	}
	return string(name), nil
}

// SendCtrlAltDel presses Ctrl, Alt and Delete, then releases them in
// reverse order. It does nothing in view-only mode.
func (c *RFBClient) SendCtrlAltDel() error {
	if c.ViewOnly {
		return nil
	}
	var buf bytes.Buffer
	for _, k := range []struct {
		key  uint32
		down bool
	}{
		{keyControlL, true},
		{keyAltL, true},
		{keyDelete, true},
		{keyDelete, false},
		{keyAltL, false},
		{keyControlL, false},
	} {
		buf.Write(keyEvent(k.key, k.down))
	}
	return c.write(buf.Bytes())
}

func (c *RFBClient) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

// shutdown starts the closing handshake and bounds how long the peer has
// to answer it.
func (c *RFBClient) shutdown(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
}

func keyEvent(key uint32, down bool) []byte {
	b := make([]byte, 8)
	b[0] = msgKeyEvent
	if down {
		b[1] = 1
	}
	binary.BigEndian.PutUint32(b[4:], key)
	return b
}

func readReason(rd io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(rd, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if n > maxReasonLength {
		return "", fmt.Errorf("reason too long: %d", n)
	}
	reason := make([]byte, n)
	if _, err := io.ReadFull(rd, reason); err != nil {
		return "", err
	}
	return string(reason), nil
}

// drain discards server messages until the connection ends.
func drain(rd *messageReader) error {
	_, err := io.Copy(io.Discard, rd)
	if err == nil {
		return io.ErrUnexpectedEOF
	}
	return err
}

// messageReader presents consecutive binary websocket messages as one
// byte stream.
type messageReader struct {
	conn *websocket.Conn
	cur  io.Reader
}

func (m *messageReader) Read(p []byte) (int, error) {
	for {
		if m.cur == nil {
			mt, r, err := m.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			m.cur = r
		}
		n, err := m.cur.Read(p)
		if errors.Is(err, io.EOF) {
			m.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}
