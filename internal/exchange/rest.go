package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cryptocrawl/models"
)

// userAgentTransport pins a browser-ish user agent; several venues reject
// the default Go client string.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// NewHTTPClient builds the http client the REST collaborators share.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Transport: userAgentTransport{agent: "curl/8.5.0", base: &http.Transport{}},
		Timeout:   timeout,
	}
}

// GetRaw performs a GET and returns the body, mapping failures onto the
// connection error kind.
func GetRaw(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnection, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", models.ErrConnection, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnection, err)
	}
	return body, nil
}

// GetJSON performs a GET and decodes the JSON body into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	body, err := GetRaw(ctx, client, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrMalformedPayload, url, err)
	}
	return nil
}
