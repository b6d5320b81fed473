package miktos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the default base URL for the Miktos API.
const DefaultBaseURL = "https://api.miktos.ai/v1"

// Default values applied to requests that leave them unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultListLimit   = 100
)

// Client is a client for the Miktos API.
//
// The base URL is fixed at construction. The bearer credential starts as
// the API key given to NewClient and is replaced by Authenticate.
//
// The default HTTP client sets no overall timeout, since it would also cut
// off streamed bodies. Bound calls with the context, or bound the wait for
// response headers with a transport such as the one built by
// NewResponseHeaderTransport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	debug          bool
	tracerProvider trace.TracerProvider

	mu     sync.RWMutex
	apiKey string
	header http.Header
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL is a ClientOption that overrides the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient is a ClientOption that sets the HTTP client to use for requests.
//
// If the client is nil, then http.DefaultClient is used. The given client is
// copied, its transport is wrapped and never modified in place.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc == nil {
			hc = http.DefaultClient
		}
		cp := *hc
		c.httpClient = &cp
	}
}

// WithRateLimiter is a ClientOption that makes every request wait on the
// given limiter before it is sent.
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithDebugLogging is a ClientOption that logs every request and response
// at debug level when enabled is true.
//
// Dumps include headers and bodies, credentials included. Do not enable it
// in production.
func WithDebugLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.debug = enabled
	}
}

// WithTracing is a ClientOption that records an OpenTelemetry client span
// for every request using the given provider.
func WithTracing(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// NewClient returns a new Client with the given API key.
//
// # Example
//
//	c := miktos.NewClient(os.Getenv("MIKTOS_API_KEY"))
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	c.setAPIKey(apiKey)

	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}

	for _, opt := range opts {
		opt(c)
	}

	c.wrapTransport()

	return c
}

// APIKey returns the bearer credential currently used for requests.
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Header returns a copy of the header set sent with every request.
func (c *Client) Header() http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.header.Clone()
}

func (c *Client) setAPIKey(apiKey string) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	header.Set("Content-Type", "application/json")

	c.mu.Lock()
	c.apiKey = apiKey
	c.header = header
	c.mu.Unlock()
}

// wrapTransport installs, from the outside in: tracing, bearer injection,
// debug logging and finally the configured base transport.
func (c *Client) wrapTransport() {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if c.debug {
		base = &debugTransport{base: base}
	}
	base = &headerTransport{base: base, header: c.Header}
	if c.tracerProvider != nil {
		base = newTracingTransport(base, c.tracerProvider)
	}
	c.httpClient.Transport = base
}

// do sends a JSON request for the named operation and returns the response
// once its status has been validated. The caller owns the response body.
func (c *Client) do(ctx context.Context, op, method, path, rawQuery string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}

	r, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limiter: %w", op, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(r)
	if err != nil {
		observeRequest(op, 0, time.Since(start))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	observeRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newRequestError(op, resp)
	}

	return resp, nil
}

// decode reads a successful response body into v.
func decode(op string, resp *http.Response, v any) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

// AuthToken is the response of an authentication request.
type AuthToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`

	// Raw is the response object exactly as the server sent it.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw object alongside the decoded fields.
func (t *AuthToken) UnmarshalJSON(b []byte) error {
	type authToken AuthToken
	var v authToken
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = AuthToken(v)
	t.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticate exchanges an email and password for an access token.
//
// On success the token replaces the client's credential, so every later
// request is authorized with it.
//
// # Example
//
//	tok, err := c.Authenticate(ctx, "me@example.com", "secret")
func (c *Client) Authenticate(ctx context.Context, email, password string) (*AuthToken, error) {
	resp, err := c.do(ctx, opAuthenticate, http.MethodPost, "/auth/token", "", &authRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var tok AuthToken
	if err := decode(opAuthenticate, resp, &tok); err != nil {
		return nil, err
	}

	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", opAuthenticate, ErrMissingAccessToken)
	}

	c.setAPIKey(tok.AccessToken)

	return &tok, nil
}

// Project is a Miktos project.
type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ContextNotes  string `json:"context_notes,omitempty"`
	RepositoryURL string `json:"repository_url,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`

	// Raw is the project object exactly as the server sent it.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw object alongside the decoded fields.
func (p *Project) UnmarshalJSON(b []byte) error {
	type project Project
	var v project
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Project(v)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// ListProjectsRequest selects a page of projects.
//
// A zero Limit means DefaultListLimit.
type ListProjectsRequest struct {
	Skip  int
	Limit int
}

// ListProjects lists the projects of the authenticated user.
//
// A nil request lists the first DefaultListLimit projects.
//
// # Example
//
//	projects, _ := c.ListProjects(ctx, nil)
//
//	for _, p := range projects {
//	   fmt.Println(p.ID, p.Name)
//	}
func (c *Client) ListProjects(ctx context.Context, req *ListProjectsRequest) ([]Project, error) {
	if req == nil {
		req = &ListProjectsRequest{}
	}
	if req.Skip < 0 || req.Limit < 0 {
		return nil, fmt.Errorf("%s: skip and limit must not be negative", opListProjects)
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	query := "skip=" + strconv.Itoa(req.Skip) + "&limit=" + strconv.Itoa(limit)

	resp, err := c.do(ctx, opListProjects, http.MethodGet, "/projects", query, nil)
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := decode(opListProjects, resp, &projects); err != nil {
		return nil, err
	}

	return projects, nil
}

// CreateProjectRequest contains the fields of a new project.
//
// Optional fields left nil are not sent at all.
type CreateProjectRequest struct {
	// Required.
	Name string `json:"name"`

	Description   *string `json:"description,omitempty"`
	ContextNotes  *string `json:"context_notes,omitempty"`
	RepositoryURL *string `json:"repository_url,omitempty"`
}

// CreateProject creates a new project.
//
// # Example
//
//	p, _ := c.CreateProject(ctx, &miktos.CreateProjectRequest{
//		Name:        "Go API Example",
//		Description: miktos.String("Testing the Miktos API with Go"),
//	})
func (c *Client) CreateProject(ctx context.Context, req *CreateProjectRequest) (*Project, error) {
	if req == nil {
		return nil, fmt.Errorf("%s: nil request", opCreateProject)
	}

	resp, err := c.do(ctx, opCreateProject, http.MethodPost, "/projects", "", req)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := decode(opCreateProject, resp, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// Message is a single message of a generation request.
type Message struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// GenerateTextRequest describes a text generation.
type GenerateTextRequest struct {
	// Required.
	ProjectID string

	// Model identifier, e.g. ModelGPT4o. Required.
	Model Model

	// Ordered conversation to continue. Required.
	Messages []Message

	// Sampling temperature. Nil means DefaultTemperature.
	Temperature *float64

	// Maximum number of tokens to generate. Nil means DefaultMaxTokens.
	MaxTokens *int
}

type generatePayload struct {
	ProjectID   string    `json:"project_id"`
	Model       Model     `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

func (req *GenerateTextRequest) payload(stream bool) *generatePayload {
	p := &generatePayload{
		ProjectID:   req.ProjectID,
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      stream,
	}
	if p.Messages == nil {
		p.Messages = []Message{}
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		p.MaxTokens = *req.MaxTokens
	}
	return p
}

// Usage reports token counts of a generation, when the server provides them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is the result of a non-streaming generation.
type Generation struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`

	// Raw is the result object exactly as the server sent it.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw object alongside the decoded fields.
func (g *Generation) UnmarshalJSON(b []byte) error {
	type generation Generation
	var v generation
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*g = Generation(v)
	g.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// GenerateText generates text with the given model.
//
// # Example
//
//	resp, _ := c.GenerateText(ctx, &miktos.GenerateTextRequest{
//		ProjectID: project.ID,
//		Model:     miktos.ModelGPT4o,
//		Messages: []miktos.Message{
//			{Role: miktos.ChatRoleUser, Content: "Explain quantum computing in simple terms."},
//		},
//	})
//
//	fmt.Println(resp.Content)
func (c *Client) GenerateText(ctx context.Context, req *GenerateTextRequest) (*Generation, error) {
	if req == nil {
		return nil, fmt.Errorf("%s: nil request", opGenerateText)
	}

	resp, err := c.do(ctx, opGenerateText, http.MethodPost, "/generate", "", req.payload(false))
	if err != nil {
		return nil, err
	}

	var g Generation
	if err := decode(opGenerateText, resp, &g); err != nil {
		return nil, err
	}

	return &g, nil
}

// GenerateTextStream starts a streaming generation.
//
// The response status is checked before the stream is returned. The caller
// must consume or Close the stream.
//
// # Example
//
//	stream, err := c.GenerateTextStream(ctx, req)
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//
//	for chunk, err := range stream.Chunks() {
//		if err != nil {
//			return err
//		}
//		fmt.Print(chunk)
//	}
func (c *Client) GenerateTextStream(ctx context.Context, req *GenerateTextRequest) (*TextStream, error) {
	if req == nil {
		return nil, fmt.Errorf("%s: nil request", opGenerateTextStream)
	}

	resp, err := c.do(ctx, opGenerateTextStream, http.MethodPost, "/generate", "", req.payload(true))
	if err != nil {
		return nil, err
	}

	return newTextStream(resp.Body), nil
}

// StreamText runs a streaming generation and calls onChunk once for every
// chunk received, in arrival order.
//
// If onChunk returns an error the stream is closed and that error is returned.
func (c *Client) StreamText(ctx context.Context, req *GenerateTextRequest, onChunk func(chunk string) error) error {
	stream, err := c.GenerateTextStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for chunk, err := range stream.Chunks() {
		if err != nil {
			return fmt.Errorf("%s: %w", opGenerateTextStream, err)
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}

	return nil
}

// String returns a pointer to s, for optional request fields.
func String(s string) *string {
	return &s
}

// Float64 returns a pointer to f, for optional request fields.
func Float64(f float64) *float64 {
	return &f
}

// Int returns a pointer to i, for optional request fields.
func Int(i int) *int {
	return &i
}
