package dataset

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sdss-spectro/spectro-service/internal/errs"
)

// CatalogClient is the narrow "submit SQL, get CSV" capability the
// spatial-search catalog is consumed through. spec.md section 1 places
// the catalog itself out of scope; only this interface matters here.
type CatalogClient interface {
	Query(ctx context.Context, sql string) ([]byte, error)
}

// DefaultTimeoutSeconds is the X-DL-TimeoutRequest default of spec.md
// section 5.
const DefaultTimeoutSeconds = 600

// HTTPCatalogClient posts a raw SQL statement to an external "query
// manager" style endpoint and returns the CSV response body, using
// net/http directly rather than through an HTTP client wrapper library.
type HTTPCatalogClient struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPCatalogClient builds a client against the given query-manager
// endpoint.
func NewHTTPCatalogClient(endpoint string) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: DefaultTimeoutSeconds * time.Second},
	}
}

// Query submits sql as a form-encoded POST and returns the CSV body.
// The request-scoped X-DL-TimeoutRequest header (seconds, default 600,
// spec.md section 5) is honored via ctx's deadline when present.
func (c *HTTPCatalogClient) Query(ctx context.Context, sql string) ([]byte, error) {
	form := url.Values{"query": {sql}, "fmt": {"csv"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, errs.Wrap(errs.KindCatalogError, err, "building catalog request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if deadline, ok := ctx.Deadline(); ok {
		secs := int(time.Until(deadline).Seconds())
		if secs > 0 {
			req.Header.Set("X-DL-TimeoutRequest", strconv.Itoa(secs))
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindCatalogError, err, "calling catalog %s", c.Endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindCatalogError, err, "reading catalog response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindCatalogError, "catalog returned status %d: %s", resp.StatusCode, string(body))
	}
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "html") || strings.Contains(ct, "json") {
		return nil, errs.New(errs.KindCatalogError, "catalog returned non-CSV body (content-type %s)", ct)
	}
	return body, nil
}
