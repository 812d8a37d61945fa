package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchgate/internal/domain/session"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/providers/identity"
	"github.com/GriffinCanCode/orchgate/internal/vnc"
)

func main() {
	page := flag.String("page", "", "Console page URL, e.g. https://web-ui.example.com/vnc/?project=p&app=a&cluster=c&vm=v")
	token := flag.String("token", os.Getenv("VNC_TOKEN"), "Access token (env VNC_TOKEN)")
	username := flag.String("username", os.Getenv("VNC_USERNAME"), "Username for a password grant when no token is given")
	password := flag.String("password", os.Getenv("VNC_PASSWORD"), "Password for the password grant")
	identityURL := flag.String("identity-url", "", "Identity provider root; derived from the page host when empty")
	realm := flag.String("realm", "master", "Identity realm")
	clientID := flag.String("client-id", "system-client", "OAuth client id for the password grant")
	insecure := flag.Bool("insecure", false, "Skip TLS verification")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := logging.NewWriter(os.Stderr, *level)
	if err := run(logger, *page, *token, *username, *password, *identityURL, *realm, *clientID, *insecure); err != nil {
		logger.Error("Bridge failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *logging.Logger, page, token, username, password, identityURL, realm, clientID string, insecure bool) error {
	if page == "" {
		return errors.New("-page is required")
	}
	pageURL, err := url.Parse(page)
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}
	endpoint, opts, err := vnc.FromPage(page)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if token == "" {
		if username == "" || password == "" {
			return errors.New("a token or username and password are required")
		}
		base := identityURL
		if base == "" {
			base = identity.DeriveBaseURL(pageURL.Host, "http://localhost:8090")
		}
		provider := identity.New(identity.Config{BaseURL: base, Realm: realm, ClientID: clientID, Timeout: 30 * time.Second}, logger)
		tok, err := provider.PasswordToken(ctx, username, password)
		if err != nil {
			return err
		}
		token = tok.AccessToken
	}

	header := http.Header{}
	header.Set("Cookie", vnc.CookieHeader(session.RemoteDesktop.TokenCookies(session.Token{Value: token})))
	header.Set("Origin", "https://"+pageURL.Host)

	client := vnc.NewRFBClient(endpoint, header, logger)
	client.ViewOnly = opts.ViewOnly
	client.InsecureTLS = insecure

	status := vnc.NewStatusLine(os.Stdout, isTerminal(os.Stdout))
	bridge := vnc.NewBridge(endpoint, client, status, opts, logger)

	go relayCtrlAltDel(ctx, bridge, logger)

	err = bridge.Run(ctx)
	fmt.Fprintln(os.Stdout)
	return err
}

// relayCtrlAltDel sends Ctrl+Alt+Del on SIGUSR1 or when "cad" is typed on
// stdin.
func relayCtrlAltDel(ctx context.Context, bridge *vnc.Bridge, logger *logging.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()

	send := func() {
		if err := bridge.SendCtrlAltDel(); err != nil {
			logger.Warn("Ctrl+Alt+Del not sent", zap.Error(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			send()
		case line := <-lines:
			if strings.EqualFold(line, "cad") {
				send()
			}
		}
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
