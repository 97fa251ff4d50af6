// Package client speaks the chat server protocol: a remote chat backend for the session
// manager, and the account endpoints backing the identity provider.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"messengy/infrastructure/http/protocol"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 15 * time.Second

// baseURL accepts "host:port" as well as a full http(s) URL.
func baseURL(addr string) (*url.URL, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

type requester struct {
	base    *url.URL
	http    *http.Client
	headers http.Header
}

func newRequester(addr string, headers http.Header) (requester, error) {
	base, err := baseURL(addr)
	if err != nil {
		return requester{}, err
	}
	return requester{base: base, http: &http.Client{Timeout: requestTimeout}, headers: headers}, nil
}

// do sends in as JSON and decodes the response into out, if any.
// Error responses are mapped back to their sentinel so errors.Is works across the wire.
func (r requester) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base.String()+path, body)
	if err != nil {
		return err
	}
	for key, values := range r.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(method, path string, resp *http.Response) error {
	var payload protocol.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Message == "" {
		payload.Message = strings.TrimSpace(string(raw))
	}
	if sentinel := protocol.Sentinel(payload.Code); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, payload.Message)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", protocol.Sentinel(protocol.CodeAuth), payload.Message)
	}
	return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, payload.Message)
}
