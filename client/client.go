// Package client is a thin Go SDK for the spectrum delivery service: a
// struct wrapping the server's base URL plus one method each for the
// ping, getSpec, listSpan, preview, plotGrid, stackedImage and query
// endpoints of spec.md section 4.7. getSpec row-array and listSpan JSON
// responses are decoded into Go values; PNG and CSV responses are
// returned as raw bytes. The metadata endpoints (profiles, contexts,
// catalogs, validate, and the like) have no client method.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

// debugSentinelPath is checked once at import time: its presence turns
// on verbose client-side request/response logging, mirroring the
// reference client's `DEBUG = os.path.isfile('/tmp/SDC_DEBUG')`.
const debugSentinelPath = "/tmp/SDC_DEBUG"

// Debug is true when debugSentinelPath exists at process start.
var Debug = sentinelActive(debugSentinelPath)

func sentinelActive(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Client talks to one spectrum service deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client against baseURL (e.g. "http://localhost:8080/spec").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
	}
}

// WithHTTPClient overrides the underlying http.Client, e.g. to set a
// custom transport or a default timeout.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	var body io.Reader
	u := c.baseURL + path
	if method == http.MethodGet {
		if len(form) > 0 {
			u += "?" + form.Encode()
		}
	} else {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	if Debug {
		log.Printf("spectro client: %s %s", req.Method, req.URL)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if Debug {
		log.Printf("spectro client: %s %s -> %d (%d bytes)", req.Method, req.URL, resp.StatusCode, len(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("spectro client: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if isErrorBody(body) {
		return nil, nil, fmt.Errorf("spectro client: %s", string(body))
	}
	return body, resp.Header, nil
}

func isErrorBody(body []byte) bool {
	return bytes.HasPrefix(body, []byte("Error: ")) || bytes.HasPrefix(body, []byte("Param Error: "))
}

// withTimeout sets the per-request X-DL-TimeoutRequest header value, in
// seconds, honored by the server for the request it is attached to.
func withTimeout(req *http.Request, d time.Duration) {
	if d > 0 {
		req.Header.Set("X-DL-TimeoutRequest", strconv.Itoa(int(d.Seconds())))
	}
}

// Ping checks liveness.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	body, _, err := c.do(req)
	if err != nil {
		return err
	}
	if string(body) != "OK" {
		return fmt.Errorf("spectro client: unexpected ping response %q", body)
	}
	return nil
}

// Spectrum is a single loaded, decoded spectrum's row array.
type Spectrum struct {
	Data *rowarray.RowArray
}

// RawSpectrum is the format=fits response: a single identifier's raw
// FITS file bytes, returned as-is rather than row-array-decoded.
type RawSpectrum struct {
	Raw []byte
}

// GetSpecOptions configures a GetSpec call. Values, if non-empty,
// restricts the returned columns.
type GetSpecOptions struct {
	Context string
	IDList  string
	Align   bool
	Format  string // "npy" (default) or "fits"
	Values  []string
	W0, W1  float64
	Timeout time.Duration
}

func (o GetSpecOptions) form() url.Values {
	v := url.Values{}
	v.Set("context", o.Context)
	v.Set("id_list", o.IDList)
	if o.Align {
		v.Set("align", "true")
	}
	if o.Format != "" {
		v.Set("format", o.Format)
	}
	if len(o.Values) > 0 {
		v.Set("values", strings.Join(o.Values, ","))
	}
	if o.W0 != 0 {
		v.Set("w0", strconv.FormatFloat(o.W0, 'g', -1, 64))
	}
	if o.W1 != 0 {
		v.Set("w1", strconv.FormatFloat(o.W1, 'g', -1, 64))
	}
	return v
}

// AlignedResult is the decoded shape of a GetSpec(align=true) response:
// the flattened (N, L) row array plus the N/L split the server carries
// in the X-Spectro-N/X-Spectro-L response headers.
type AlignedResult struct {
	N, L int
	Data *rowarray.RowArray
}

// GetSpec fetches one or more spectra. format=fits yields a single
// RawSpectrum; align=true yields a single AlignedResult; otherwise it
// decodes each concatenated per-spectrum block into its own Spectrum.
func (c *Client) GetSpec(ctx context.Context, opts GetSpecOptions) ([]Spectrum, *AlignedResult, *RawSpectrum, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/getSpec", opts.form())
	if err != nil {
		return nil, nil, nil, err
	}
	withTimeout(req, opts.Timeout)
	body, headers, err := c.do(req)
	if err != nil {
		return nil, nil, nil, err
	}

	if opts.Format == "fits" {
		return nil, nil, &RawSpectrum{Raw: body}, nil
	}

	if opts.Align {
		ra, err := rowarray.Decode(bytes.NewReader(body))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("spectro client: decoding aligned result: %w", err)
		}
		n, _ := strconv.Atoi(headers.Get("X-Spectro-N"))
		l, _ := strconv.Atoi(headers.Get("X-Spectro-L"))
		return nil, &AlignedResult{N: n, L: l, Data: ra}, nil, nil
	}

	var out []Spectrum
	r := bytes.NewReader(body)
	for r.Len() > 0 {
		ra, err := rowarray.Decode(r)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("spectro client: decoding spectrum block: %w", err)
		}
		out = append(out, Spectrum{Data: ra})
	}
	return out, nil, nil, nil
}

// ListSpan fetches the common log-wavelength span across id_list.
func (c *Client) ListSpan(ctx context.Context, contextName, idList string) (w0, w1 float64, err error) {
	form := url.Values{"context": {contextName}, "id_list": {idList}}
	req, err := c.newRequest(ctx, http.MethodPost, "/listSpan", form)
	if err != nil {
		return 0, 0, err
	}
	body, _, err := c.do(req)
	if err != nil {
		return 0, 0, err
	}
	var result struct {
		W0 float64 `json:"w0"`
		W1 float64 `json:"w1"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, 0, fmt.Errorf("spectro client: decoding listSpan response: %w", err)
	}
	return result.W0, result.W1, nil
}

// Preview fetches a single identifier's cached preview PNG.
func (c *Client) Preview(ctx context.Context, contextName, id string) ([]byte, error) {
	form := url.Values{"context": {contextName}, "id": {id}}
	req, err := c.newRequest(ctx, http.MethodGet, "/preview", form)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(req)
	return body, err
}

// PlotGrid fetches a mosaic PNG of every id_list member's preview.
func (c *Client) PlotGrid(ctx context.Context, contextName, idList string, ncols int) ([]byte, error) {
	form := url.Values{"context": {contextName}, "id_list": {idList}}
	if ncols > 0 {
		form.Set("ncols", strconv.Itoa(ncols))
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/plotGrid", form)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(req)
	return body, err
}

// StackedImage renders the flux waterfall for id_list.
func (c *Client) StackedImage(ctx context.Context, contextName, idList string) ([]byte, error) {
	form := url.Values{"context": {contextName}, "id_list": {idList}}
	req, err := c.newRequest(ctx, http.MethodPost, "/stackedImage", form)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(req)
	return body, err
}

// Query issues a raw catalog query and returns the CSV response body.
func (c *Client) Query(ctx context.Context, contextName, fields, catalog, cond string) ([]byte, error) {
	form := url.Values{"context": {contextName}, "fields": {fields}, "catalog": {catalog}, "cond": {cond}}
	req, err := c.newRequest(ctx, http.MethodGet, "/query", form)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(req)
	return body, err
}
