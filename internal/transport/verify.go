package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// implicitTLSPort is the SMTPS port where TLS starts before the greeting.
const implicitTLSPort = 465

// Verify checks that the configured server accepts the sender credentials.
// It connects, upgrades to TLS when offered, authenticates and quits
// without sending a message. Mock configurations return immediately.
func Verify(ctx context.Context, cfg Config) error {
	if cfg.IsMock() {
		return nil
	}
	w := cfg.Wire()
	if w.Server == "" {
		return fmt.Errorf("verifying transport: SMTP host is empty")
	}
	addr := net.JoinHostPort(w.Server, strconv.Itoa(w.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: w.Server}
	if w.Port == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, w.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("greeting from %s: %w", addr, err)
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return fmt.Errorf("hello to %s: %w", addr, err)
	}

	if w.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starting TLS with %s: %w", addr, err)
			}
		}
	}

	if w.User != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("%s does not offer authentication", addr)
		}
		auth := sasl.NewPlainClient("", w.User, w.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("authenticating %s at %s: %w", w.User, addr, err)
		}
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("closing session with %s: %w", addr, err)
	}
	return nil
}
