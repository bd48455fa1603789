package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/2beens/withings2weeks/internal/telemetry/metrics"
	"github.com/2beens/withings2weeks/internal/telemetry/tracing"
	"github.com/2beens/withings2weeks/pkg"

	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL         = "https://account.withings.com/oauth2_user/authorize2"
	DefaultBaseURL         = "https://wbsapi.withings.net"
	DefaultCallbackTimeout = 120 * time.Second
	tokenPath              = "/v2/oauth2"
	stateLength            = 32
)

var ErrTokenRequestFailed = errors.New("token request failed")

// TokenRequestError describes a failed call to the token endpoint.
type TokenRequestError struct {
	GrantType  string
	HTTPStatus int
	APIStatus  int
	Reason     string
}

func (e *TokenRequestError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrTokenRequestFailed, e.GrantType)
	if e.HTTPStatus != 0 && e.HTTPStatus != http.StatusOK {
		msg += fmt.Sprintf(" HTTP %d", e.HTTPStatus)
	}
	if e.APIStatus != 0 {
		msg += fmt.Sprintf(" status %d", e.APIStatus)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TokenRequestError) Is(target error) bool {
	return target == ErrTokenRequestFailed
}

type tokenResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Body   struct {
		UserID       *flexInt `json:"userid"`
		AccessToken  string   `json:"access_token"`
		RefreshToken string   `json:"refresh_token"`
		ExpiresIn    flexInt  `json:"expires_in"`
		Scope        string   `json:"scope"`
		TokenType    string   `json:"token_type"`
	} `json:"body"`
}

type ServiceParams struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	BaseURL      string
	HTTPClient   *http.Client
	Store        TokenStore
	Metrics      *metrics.Manager
}

// Service runs the Withings OAuth2 authorization code flow and keeps the
// stored tokens fresh.
type Service struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	store       TokenStore
	metrics     *metrics.Manager

	// injectable for unit testing
	RandStringFunc  func(s int) (string, error)
	OpenBrowserFunc func(url string) error
	NowFunc         func() time.Time
	Out             io.Writer
	CallbackTimeout time.Duration
}

func NewService(params ServiceParams) *Service {
	authURL := params.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	baseURL := strings.TrimRight(params.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Service{
		oauthConfig: &oauth2.Config{
			ClientID:     params.ClientID,
			ClientSecret: params.ClientSecret,
			RedirectURL:  params.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  baseURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient:      httpClient,
		store:           params.Store,
		metrics:         params.Metrics,
		RandStringFunc:  pkg.GenerateRandomString,
		OpenBrowserFunc: browser.OpenURL,
		NowFunc:         time.Now,
		Out:             os.Stdout,
		CallbackTimeout: DefaultCallbackTimeout,
	}
}

// AuthCodeURL builds the user authorization URL. Withings wants the scopes
// comma separated instead of the usual space separated list.
func (s *Service) AuthCodeURL(state string, scopes []string) string {
	return s.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", strings.Join(scopes, ",")),
	)
}

// Exchange trades an authorization code for tokens and stores them.
func (s *Service) Exchange(ctx context.Context, code string) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.oauthConfig.RedirectURL)

	resp, err := s.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	tokens := &Tokens{
		AccessToken:  resp.Body.AccessToken,
		RefreshToken: resp.Body.RefreshToken,
		ExpiresAt:    expiresAtFrom(s.NowFunc(), int64(resp.Body.ExpiresIn)),
		Scope:        resp.Body.Scope,
	}
	if resp.Body.UserID != nil {
		id := int64(*resp.Body.UserID)
		tokens.UserID = &id
	}

	if err := s.store.Save(tokens); err != nil {
		return nil, fmt.Errorf("save tokens: %w", err)
	}
	return tokens, nil
}

// Refresh gets a new access token. Fields missing from the response are
// carried over from the old tokens.
func (s *Service) Refresh(ctx context.Context, old *Tokens) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", old.RefreshToken)

	resp, err := s.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}
	s.metrics.CounterTokenRefreshes.Inc()

	tokens := &Tokens{
		AccessToken:  resp.Body.AccessToken,
		RefreshToken: old.RefreshToken,
		ExpiresAt:    expiresAtFrom(s.NowFunc(), int64(resp.Body.ExpiresIn)),
		Scope:        old.Scope,
		UserID:       old.UserID,
	}
	if resp.Body.RefreshToken != "" {
		tokens.RefreshToken = resp.Body.RefreshToken
	}
	if resp.Body.Scope != "" {
		tokens.Scope = resp.Body.Scope
	}
	if resp.Body.UserID != nil {
		id := int64(*resp.Body.UserID)
		tokens.UserID = &id
	}

	if err := s.store.Save(tokens); err != nil {
		return nil, fmt.Errorf("save tokens: %w", err)
	}
	return tokens, nil
}

// ValidTokens loads the stored tokens and refreshes them when they are about to expire.
func (s *Service) ValidTokens(ctx context.Context) (*Tokens, error) {
	tokens, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if !tokens.Expired(s.NowFunc()) {
		return tokens, nil
	}

	log.Debugf("access token expires at %s, refreshing", tokens.Expiry().Format(time.RFC3339))
	return s.Refresh(ctx, tokens)
}

func (s *Service) AccessToken(ctx context.Context) (string, error) {
	tokens, err := s.ValidTokens(ctx)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// TokenSource exposes the stored credentials to oauth2 aware clients.
func (s *Service) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &serviceTokenSource{ctx: ctx, service: s}
}

type serviceTokenSource struct {
	ctx     context.Context
	service *Service
}

func (ts *serviceTokenSource) Token() (*oauth2.Token, error) {
	tokens, err := ts.service.ValidTokens(ts.ctx)
	if err != nil {
		return nil, err
	}
	return tokens.OAuth2Token(), nil
}

// AuthorizeInteractive runs the whole code flow: it points the user at the
// authorization page, waits for the redirect and stores the resulting tokens.
func (s *Service) AuthorizeInteractive(ctx context.Context, scopes []string) (_ *Tokens, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.authorizeInteractive")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scopes", strings.Join(scopes, ",")))

	state, err := s.RandStringFunc(stateLength)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	listener, err := NewCallbackListener(s.oauthConfig.RedirectURL, state)
	if err != nil {
		return nil, err
	}
	if err := listener.Start(); err != nil {
		return nil, err
	}

	authURL := s.AuthCodeURL(state, scopes)
	fmt.Fprintln(s.Out, "Open (or opened) browser to authorize:")
	fmt.Fprintln(s.Out, authURL)
	if err := s.OpenBrowserFunc(authURL); err != nil {
		log.Debugf("open browser: %s", err)
	}

	code, err := listener.Wait(ctx, s.CallbackTimeout)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(s.Out, "Received authorization code; exchanging for tokens...")
	tokens, err := s.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(s.Out, "Authorization complete. Tokens stored.")

	return tokens, nil
}

func (s *Service) requestToken(ctx context.Context, form url.Values) (_ *tokenResponse, err error) {
	grantType := form.Get("grant_type")
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.requestToken")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("grant_type", grantType))

	outcome := "error"
	defer func() {
		s.metrics.CounterAPIRequests.WithLabelValues("requesttoken", outcome).Inc()
	}()

	form.Set("action", "requesttoken")
	form.Set("client_id", s.oauthConfig.ClientID)
	form.Set("client_secret", s.oauthConfig.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauthConfig.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := time.Now()
	resp, err := s.httpClient.Do(req)
	s.metrics.HistogramRequestDuration.WithLabelValues("requesttoken").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, &TokenRequestError{GrantType: grantType, Reason: err.Error()}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TokenRequestError{GrantType: grantType, HTTPStatus: resp.StatusCode, Reason: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TokenRequestError{GrantType: grantType, HTTPStatus: resp.StatusCode, Reason: string(respBytes)}
	}

	tokenResp := &tokenResponse{}
	if err := json.Unmarshal(respBytes, tokenResp); err != nil {
		return nil, &TokenRequestError{GrantType: grantType, HTTPStatus: resp.StatusCode, Reason: "unmarshal response: " + err.Error()}
	}
	if tokenResp.Status != 0 {
		return nil, &TokenRequestError{GrantType: grantType, HTTPStatus: resp.StatusCode, APIStatus: tokenResp.Status, Reason: tokenResp.Error}
	}
	if tokenResp.Body.AccessToken == "" {
		return nil, &TokenRequestError{GrantType: grantType, HTTPStatus: resp.StatusCode, Reason: "no access token in response"}
	}

	outcome = "ok"
	return tokenResp, nil
}
