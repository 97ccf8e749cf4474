package ftm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// apiClient is the CLI's HTTP client for talking to an already-running
// `ftm checkout` server — the CLI surface in spec.md §6 is a client, not
// the engine itself.
type apiClient struct {
	base string
	hc   *http.Client
}

func newAPIClient(port int) *apiClient {
	return &apiClient{
		base: fmt.Sprintf("http://127.0.0.1:%d", port),
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) get(path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.hc.Get(u)
	if err != nil {
		return fmt.Errorf("connecting to ftm server: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *apiClient) getRaw(path string, query url.Values) ([]byte, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.hc.Get(u)
	if err != nil {
		return nil, fmt.Errorf("connecting to ftm server: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *apiClient) post(path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.hc.Post(c.base+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("connecting to ftm server: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// urlValues builds a url.Values from alternating key/value pairs,
// skipping zero-ish values (empty string, false, zero) so optional query
// parameters are simply omitted rather than sent as "".
func urlValues(pairs ...any) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		switch val := pairs[i+1].(type) {
		case string:
			if val != "" {
				v.Set(key, val)
			}
		case bool:
			if val {
				v.Set(key, "true")
			}
		case int:
			if val != 0 {
				v.Set(key, fmt.Sprintf("%d", val))
			}
		}
	}
	return v
}

func parseAPIError(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return &apiError{Status: status, Message: string(body)}
	}
	return &apiError{Status: status, Message: payload.Message}
}
