// Package iosssh implements the device session for Cisco IOS over plain SSH.
// Command output is raw CLI text wrapped as a JSON string; no interface DOM
// handler is registered for this variant, so devices using it exercise the
// screen-scraping path only for collectors that declare one.
package iosssh

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"golang.org/x/crypto/ssh"
)

const (
	defaultTimeout = 30 * time.Second
	defaultPort    = 22
)

type Session struct {
	host    string
	port    int
	timeout time.Duration
	client  *ssh.Client
}

// Options controls transport behavior for one session.
type Options struct {
	Port    int
	Timeout time.Duration
}

func NewSession(host string, opts Options) *Session {
	port := opts.Port
	if port <= 0 {
		port = defaultPort
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Session{
		host:    host,
		port:    port,
		timeout: timeout,
	}
}

func (s *Session) Open(ctx context.Context, creds device.Credentials) error {
	errFactory := errors.New()

	cfg := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         s.timeout,
	}

	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errFactory.Wrap(errors.ErrDeviceLogin, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return errFactory.Wrap(errors.ErrDeviceLogin, err)
	}
	s.client = ssh.NewClient(sshConn, chans, reqs)

	// Login probe: a session channel that cannot run a trivial command
	// means the account has no exec access.
	if _, err := s.Run(ctx, "show clock"); err != nil {
		s.client.Close()
		s.client = nil
		return errFactory.Wrap(errors.ErrDeviceLogin, err)
	}

	return nil
}

func (s *Session) Run(ctx context.Context, commands ...string) ([]json.RawMessage, error) {
	errFactory := errors.New()

	if s.client == nil {
		return nil, errFactory.WithMessage(errors.ErrDeviceExec, "session not open")
	}

	results := make([]json.RawMessage, 0, len(commands))
	for _, cmd := range commands {
		select {
		case <-ctx.Done():
			return nil, errFactory.Wrap(errors.ErrDeviceExec, ctx.Err())
		default:
		}

		out, err := s.runOne(cmd)
		if err != nil {
			return nil, errFactory.WithData(errors.ErrDeviceExec, struct {
				Host    string
				Command string
				Error   string
			}{s.host, cmd, err.Error()})
		}
		results = append(results, out)
	}

	return results, nil
}

func (s *Session) runOne(cmd string) (json.RawMessage, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	out, err := sess.CombinedOutput(cmd)
	if err != nil {
		return nil, err
	}

	return json.Marshal(string(out))
}

func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}

	if err := s.client.Close(); err != nil {
		return errors.New().Wrap(errors.ErrDeviceShutdown, err)
	}
	s.client = nil

	return nil
}
