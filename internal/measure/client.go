package measure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/withings2weeks/internal/telemetry/metrics"
	"github.com/2beens/withings2weeks/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://wbsapi.withings.net"
	measurePath    = "/measure"
	endpointLabel  = "getmeas"
)

var ErrRemoteRequestFailed = errors.New("remote request failed")

// RemoteRequestError describes a failed or malformed getmeas call.
type RemoteRequestError struct {
	HTTPStatus int
	APIStatus  int
	Reason     string
	Err        error
}

func (e *RemoteRequestError) Error() string {
	msg := fmt.Sprintf("%s: measure getmeas", ErrRemoteRequestFailed)
	if e.HTTPStatus != 0 && e.HTTPStatus != http.StatusOK {
		msg += fmt.Sprintf(" HTTP %d", e.HTTPStatus)
	}
	if e.APIStatus != 0 {
		msg += fmt.Sprintf(" status %d", e.APIStatus)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteRequestError) Is(target error) bool {
	return target == ErrRemoteRequestFailed
}

func (e *RemoteRequestError) Unwrap() error {
	return e.Err
}

// PageRequest selects one page of measure groups.
type PageRequest struct {
	Start      time.Time
	End        time.Time
	Types      []MeasureType // defaults to ScaleTypes
	Offset     *int64
	LastUpdate *time.Time
}

// Page is one getmeas response body with its continuation info.
type Page struct {
	Groups   []MeasureGroup
	More     bool
	Offset   *int64
	Timezone string
}

// Client talks to the Withings measure service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	metrics     *metrics.Manager
}

func NewClient(baseURL string, httpClient *http.Client, tokenSource oauth2.TokenSource, metricsManager *metrics.Manager) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		tokenSource: tokenSource,
		metrics:     metricsManager,
	}
}

// FetchPage requests a single getmeas page.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (_ *Page, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "measure.client.fetchPage")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	outcome := "error"
	defer func() {
		c.metrics.CounterAPIRequests.WithLabelValues(endpointLabel, outcome).Inc()
	}()

	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	reqURL := c.baseURL + measurePath + "?" + encodeParams(req).Encode()
	span.SetAttributes(attribute.String("url", reqURL))
	log.Debugf("calling getmeas: %s", reqURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.HistogramRequestDuration.WithLabelValues(endpointLabel).Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, &RemoteRequestError{Reason: "http client do", Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteRequestError{HTTPStatus: resp.StatusCode, Reason: "read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteRequestError{HTTPStatus: resp.StatusCode, Reason: string(respBytes)}
	}

	page, err := parsePage(respBytes)
	if err != nil {
		return nil, err
	}

	outcome = "ok"
	span.SetAttributes(
		attribute.Int("groups", len(page.Groups)),
		attribute.Bool("more", page.More),
	)

	return page, nil
}

func parsePage(respBytes []byte) (*Page, error) {
	envelope := &GetMeasResponse{}
	if err := json.Unmarshal(respBytes, envelope); err != nil {
		return nil, &RemoteRequestError{HTTPStatus: http.StatusOK, Reason: "unmarshal response", Err: err}
	}
	if envelope.Status != 0 {
		return nil, &RemoteRequestError{HTTPStatus: http.StatusOK, APIStatus: envelope.Status, Reason: envelope.Error}
	}

	var rawBody map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Body, &rawBody); err != nil {
		return nil, &RemoteRequestError{HTTPStatus: http.StatusOK, Reason: "unexpected response body", Err: err}
	}
	// an absent list is an empty page, anything but a list is malformed
	if grps, ok := rawBody["measuregrps"]; ok && string(grps) != "null" {
		if trimmed := strings.TrimSpace(string(grps)); !strings.HasPrefix(trimmed, "[") {
			return nil, &RemoteRequestError{HTTPStatus: http.StatusOK, Reason: "unexpected response structure: measuregrps not a list"}
		}
	}

	body := &GetMeasBody{}
	if err := json.Unmarshal(envelope.Body, body); err != nil {
		return nil, &RemoteRequestError{HTTPStatus: http.StatusOK, Reason: "unmarshal response body", Err: err}
	}

	return &Page{
		Groups:   body.MeasureGrps,
		More:     bool(body.More),
		Offset:   body.Offset,
		Timezone: body.Timezone,
	}, nil
}

func encodeParams(req PageRequest) url.Values {
	types := req.Types
	if len(types) == 0 {
		types = ScaleTypes()
	}
	typeCodes := make([]string, 0, len(types))
	for _, t := range types {
		typeCodes = append(typeCodes, strconv.Itoa(int(t)))
	}

	params := url.Values{}
	params.Set("action", "getmeas")
	params.Set("meastypes", strings.Join(typeCodes, ","))
	params.Set("startdate", strconv.FormatInt(req.Start.Unix(), 10))
	params.Set("enddate", strconv.FormatInt(req.End.Unix(), 10))
	if req.Offset != nil {
		params.Set("offset", strconv.FormatInt(*req.Offset, 10))
	}
	if req.LastUpdate != nil {
		params.Set("lastupdate", strconv.FormatInt(req.LastUpdate.Unix(), 10))
	}
	return params
}
