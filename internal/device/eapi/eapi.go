// Package eapi implements the device session for Arista EOS over the
// eAPI JSON-RPC endpoint.
package eapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
)

const (
	defaultTimeout = 30 * time.Second
	rpcVersion     = "2.0"
)

type Session struct {
	host   string
	url    string
	creds  device.Credentials
	client *http.Client
}

// Options controls transport behavior for one session.
type Options struct {
	// InsecureTLS skips certificate verification. Most eAPI endpoints run
	// with self-signed certificates.
	InsecureTLS bool
	Timeout     time.Duration
}

func NewSession(host string, opts Options) *Session {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureTLS}, //nolint:gosec
	}

	return &Session{
		host: host,
		url:  fmt.Sprintf("https://%s/command-api", host),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Open verifies API reachability and credentials with a hostname probe.
func (s *Session) Open(ctx context.Context, creds device.Credentials) error {
	errFactory := errors.New()

	s.creds = creds

	res, err := s.Run(ctx, "show hostname")
	if err != nil {
		return errFactory.Wrap(errors.ErrDeviceLogin, err)
	}

	var probe struct {
		Hostname string `json:"hostname"`
	}
	if err := json.Unmarshal(res[0], &probe); err == nil && probe.Hostname != "" {
		logger.Debug().Str("host", s.host).Str("hostname", probe.Hostname).Msg("eAPI session established")
	}

	return nil
}

func (s *Session) Run(ctx context.Context, commands ...string) ([]json.RawMessage, error) {
	errFactory := errors.New()

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: rpcVersion,
		Method:  "runCmds",
		Params: rpcParams{
			Version: 1,
			Cmds:    commands,
			Format:  "json",
		},
		ID: "netdom",
	})
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrDeviceExec, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrDeviceExec, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.creds.Username, s.creds.Password)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrDeviceExec, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errFactory.WithData(errors.ErrDeviceExec, struct {
			Host   string
			Status int
		}{s.host, resp.StatusCode})
	}

	var rpcRes rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcRes); err != nil {
		return nil, errFactory.Wrap(errors.ErrDeviceExec, err)
	}

	if rpcRes.Error != nil {
		return nil, errFactory.WithData(errors.ErrDeviceExec, struct {
			Host    string
			Code    int
			Message string
		}{s.host, rpcRes.Error.Code, rpcRes.Error.Message})
	}

	if len(rpcRes.Result) != len(commands) {
		return nil, errFactory.WithMessage(errors.ErrDeviceExec, "eAPI result count mismatch")
	}

	return rpcRes.Result, nil
}

func (*Session) Close() error {
	return nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      string    `json:"id"`
}

type rpcParams struct {
	Version int      `json:"version"`
	Cmds    []string `json:"cmds"`
	Format  string   `json:"format"`
}

type rpcResponse struct {
	Result []json.RawMessage `json:"result"`
	Error  *rpcError         `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
