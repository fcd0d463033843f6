// Package nxapi implements the device session for Cisco NX-OS over the
// NX-API ins_api endpoint.
package nxapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
)

const (
	defaultTimeout = 30 * time.Second
	apiVersion     = "1.0"
)

type Session struct {
	host   string
	url    string
	creds  device.Credentials
	client *http.Client
}

// Options controls transport behavior for one session.
type Options struct {
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
		url:  fmt.Sprintf("https://%s/ins", host),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Open verifies API reachability and credentials with a version probe.
func (s *Session) Open(ctx context.Context, creds device.Credentials) error {
	errFactory := errors.New()

	s.creds = creds

	if _, err := s.Run(ctx, "show version"); err != nil {
		return errFactory.Wrap(errors.ErrDeviceLogin, err)
	}

	return nil
}

func (s *Session) Run(ctx context.Context, commands ...string) ([]json.RawMessage, error) {
	errFactory := errors.New()

	reqBody, err := json.Marshal(insRequest{
		Ins: insEnvelope{
			Version:      apiVersion,
			Type:         "cli_show",
			Chunk:        "0",
			SID:          "1",
			Input:        strings.Join(commands, " ;"),
			OutputFormat: "json",
		},
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

	var insRes insResponse
	if err := json.NewDecoder(resp.Body).Decode(&insRes); err != nil {
		return nil, errFactory.Wrap(errors.ErrDeviceExec, err)
	}

	outputs := insRes.Ins.Outputs.Output
	if len(outputs) != len(commands) {
		return nil, errFactory.WithMessage(errors.ErrDeviceExec, "NX-API output count mismatch")
	}

	results := make([]json.RawMessage, 0, len(outputs))
	for _, out := range outputs {
		if out.Code != "" && out.Code != "200" {
			return nil, errFactory.WithData(errors.ErrDeviceExec, struct {
				Host    string
				Code    string
				Message string
			}{s.host, out.Code, out.Msg})
		}
		results = append(results, out.Body)
	}

	return results, nil
}

func (*Session) Close() error {
	return nil
}

type insRequest struct {
	Ins insEnvelope `json:"ins_api"`
}

type insEnvelope struct {
	Version      string `json:"version"`
	Type         string `json:"type"`
	Chunk        string `json:"chunk"`
	SID          string `json:"sid"`
	Input        string `json:"input"`
	OutputFormat string `json:"output_format"`
}

type insResponse struct {
	Ins struct {
		Outputs struct {
			Output outputList `json:"output"`
		} `json:"outputs"`
	} `json:"ins_api"`
}

type insOutput struct {
	Body  json.RawMessage `json:"body"`
	Code  string          `json:"code"`
	Msg   string          `json:"msg"`
	Input string          `json:"input"`
}

// outputList tolerates the NX-API habit of returning a bare object for a
// single command and an array for several.
type outputList []insOutput

func (o *outputList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []insOutput
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}

	var one insOutput
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*o = outputList{one}
	return nil
}
