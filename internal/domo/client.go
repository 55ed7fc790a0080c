package domo

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/domo-bridge/internal/infrastructure/logging"
)

// Default connection parameters, matching the panel's documented limits.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxInflight    = 3
	DefaultScenePause     = 200 * time.Millisecond
)

// successMarker is the literal substring the panel embeds in command
// responses to indicate boolean true.
const successMarker = "<bool>true</bool>"

// logBodyLimit bounds how much of an unexpected response body is logged.
const logBodyLimit = 200

// Config contains panel connection options.
// These map to the panel section of config.yaml.
type Config struct {
	// Host is the panel base URL, e.g. "http://192.168.1.10".
	Host string

	// Username and Password are the basic auth credentials.
	Username string
	Password string

	// VerifyTLS enables certificate validation. Off by default:
	// panels ship self-signed certificates on private networks.
	VerifyTLS bool

	// RequestTimeout bounds a whole request (default 30s).
	RequestTimeout time.Duration

	// ConnectTimeout bounds connection establishment (default 10s).
	ConnectTimeout time.Duration

	// MaxInflight is the global concurrent request limit (default 3).
	MaxInflight int

	// ScenePause is the pause between scene fetches during discovery
	// (default 200ms).
	ScenePause time.Duration
}

// Client is the HTTP/XML protocol client for one panel.
//
// A single admission semaphore bounds concurrent requests across all
// paths: discovery, polling and commands. No operation retries
// internally.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	scenePause time.Duration
	httpClient *http.Client
	sem        *semaphore.Weighted
	logger     *logging.Logger
}

// New creates a protocol client for the panel described by cfg.
// Zero-valued timeouts and limits fall back to the defaults above.
func New(cfg Config, logger *logging.Logger) *Client {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	maxInflight := cfg.MaxInflight
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflight
	}
	scenePause := cfg.ScenePause
	if scenePause <= 0 {
		scenePause = DefaultScenePause
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}
	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Panels use self-signed certificates on private networks
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.Host, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		scenePause: scenePause,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		sem:    semaphore.NewWeighted(int64(maxInflight)),
		logger: logger,
	}
}

// BaseURL returns the panel base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchXML issues an authenticated GET on the given endpoint path and
// returns the parsed document.
//
// Failures wrap ErrAuth (401), ErrTransport (timeout or connection
// error) or ErrProtocol (unexpected status, empty/non-XML body,
// unparsable XML).
func (c *Client) FetchXML(ctx context.Context, path string) (*Document, error) {
	return c.get(ctx, c.baseURL+path)
}

// TestConnection verifies the panel is reachable and the credentials
// are valid by fetching the topology root and checking its tag. Used
// only by setup, not polling.
func (c *Client) TestConnection(ctx context.Context) error {
	doc, err := c.FetchXML(ctx, "/api/maps.xml")
	if err != nil {
		return err
	}
	if doc.RootTag() != "MapScenes" {
		return fmt.Errorf("%w: unexpected root element %q", ErrProtocol, doc.RootTag())
	}
	return nil
}

// FetchAllStatuses retrieves the bulk status document covering every
// element in one request.
func (c *Client) FetchAllStatuses(ctx context.Context) (*Document, error) {
	return c.FetchXML(ctx, "/api/element_xml_statuses.xml")
}

// FetchSingleStatus retrieves the status document for exactly one
// element, used for post-command verification.
func (c *Client) FetchSingleStatus(ctx context.Context, elementID string) (*Document, error) {
	return c.FetchXML(ctx, "/api/element_xml_statuses/"+numericID(elementID)+".xml")
}

// Arg is one positional command argument. Type defaults to "int".
type Arg struct {
	Value string
	Type  string
}

// Args maps argument index to its value and type.
type Args map[int]Arg

// SendAction sends an imperative command to an element.
//
// The command is encoded as query parameters on a GET, the panel's own
// command grammar. Arguments are emitted in index order. The success
// policy is lenient: HTTP 200 with a boolean-true marker, an empty
// body, or any other 200 content (logged as a warning) all count as
// success. Non-200 and transport failures return an error. Never
// retries internally.
func (c *Client) SendAction(ctx context.Context, elementID, action string, args Args) error {
	var params strings.Builder
	params.WriteString("_method=put&action=")
	params.WriteString(escapeQuery(action))

	indices := make([]int, 0, len(args))
	for idx := range args {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		arg := args[idx]
		argType := arg.Type
		if argType == "" {
			argType = "int"
		}
		fmt.Fprintf(&params, "&%s=%s&%s=%s",
			escapeQuery(fmt.Sprintf("arguments[%d][value]", idx)),
			escapeQuery(arg.Value),
			escapeQuery(fmt.Sprintf("arguments[%d][type]", idx)),
			escapeQuery(argType),
		)
	}

	url := fmt.Sprintf("%s/elements/%s?%s", c.baseURL, numericID(elementID), params.String())

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError("command request failed", "action", action, "element_id", elementID, "error", err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	if resp.StatusCode == http.StatusUnauthorized {
		c.logError("command authentication failed", "action", action, "element_id", elementID)
		return fmt.Errorf("%w: command %s", ErrAuth, action)
	}
	if resp.StatusCode != http.StatusOK {
		c.logError("command rejected", "action", action, "element_id", elementID, "status", resp.StatusCode)
		return fmt.Errorf("%w: command %s returned status %d", ErrProtocol, action, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	content := strings.TrimSpace(string(body))
	switch {
	case strings.Contains(content, successMarker):
		// Explicit success
	case content == "":
		// Some commands return no body but are successful
	default:
		c.logWarn("unexpected command response",
			"action", action, "element_id", elementID, "body", truncate(content, logBodyLimit))
	}
	return nil
}

// get issues an authenticated GET and parses the body as XML.
func (c *Client) get(ctx context.Context, url string) (*Document, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError("request failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	if resp.StatusCode == http.StatusUnauthorized {
		c.logError("authentication failed", "url", url)
		return nil, fmt.Errorf("%w: %s", ErrAuth, url)
	}
	if resp.StatusCode != http.StatusOK {
		c.logError("unexpected status", "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d from %s", ErrProtocol, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	content := strings.TrimSpace(string(body))
	if content == "" || !strings.HasPrefix(content, "<") {
		return nil, fmt.Errorf("%w: response from %s is not XML", ErrProtocol, url)
	}

	doc, err := ParseDocument([]byte(content))
	if err != nil {
		c.logError("invalid XML", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return doc, nil
}

// numericID returns the last path segment of an element id. Some panel
// documents report ids as full element paths.
func numericID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// escapeQuery percent-encodes a query component, encoding spaces as
// %20 rather than "+" to match the panel's URL grammar.
func escapeQuery(s string) string {
	escaped := strings.Builder{}
	for _, b := range []byte(s) {
		if isUnreservedByte(b) {
			escaped.WriteByte(b)
		} else {
			fmt.Fprintf(&escaped, "%%%02X", b)
		}
	}
	return escaped.String()
}

// isUnreservedByte reports whether b needs no percent-encoding.
func isUnreservedByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-', b == '_', b == '.', b == '~':
		return true
	default:
		return false
	}
}

// truncate bounds s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}
