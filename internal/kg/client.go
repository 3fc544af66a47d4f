package kg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"paperlink/internal/config"
	"paperlink/internal/services"
)

// Item is a knowledge graph entity returned by a search.
type Item struct {
	ID    string
	Label string
}

// Linker defines the knowledge graph operations the pipeline needs. The
// concrete client talks to a Wikibase Action API; tests substitute fakes.
type Linker interface {
	SearchByIdentifier(ctx context.Context, identifier string) ([]Item, error)
	SearchByTitle(ctx context.Context, title string) ([]Item, error)
	HasRepositoryClaim(ctx context.Context, itemID, repositoryURL string) (bool, error)
	AddRepositoryClaim(ctx context.Context, itemID, repositoryURL, referenceURL string) error
}

// Client provides access to a Wikibase instance through its Action API.
// Writes authenticate with a bot login on first use; reads are anonymous.
type Client struct {
	baseURL            string
	user               string
	password           string
	userAgent          string
	identifierProperty string
	repositoryProperty string
	referenceProperty  string
	httpClient         *http.Client

	mu        sync.Mutex
	csrfToken string
}

var _ Linker = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The replacement keeps the
// client's cookie jar so login sessions survive.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			jar := c.httpClient.Jar
			c.httpClient = client
			if c.httpClient.Jar == nil {
				c.httpClient.Jar = jar
			}
		}
	}
}

// New creates a knowledge graph client from configuration.
func New(cfg config.KG, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("kg base url required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:            strings.TrimRight(baseURL, "/"),
		user:               cfg.User,
		password:           cfg.Password,
		userAgent:          cfg.UserAgent,
		identifierProperty: cfg.IdentifierProperty,
		repositoryProperty: cfg.RepositoryProperty,
		referenceProperty:  cfg.ReferenceProperty,
		httpClient:         &http.Client{Timeout: timeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// apiError is the error envelope the Action API returns with HTTP 200.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("kg api error %s: %s", e.Code, e.Info)
}

// call issues an Action API request and decodes the response into out.
// POST form bodies are used for writes, GET query strings for reads.
func (c *Client) call(ctx context.Context, operation string, params url.Values, write bool, out any) error {
	params.Set("format", "json")

	var req *http.Request
	var err error
	if write {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/w/api.php",
			strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/w/api.php?"+params.Encode(), nil)
	}
	if err != nil {
		return services.Wrap(services.ErrPermanent, "kg", operation, "build request", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "kg", operation, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		marker := services.ErrPermanent
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "kg", operation,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "kg", operation, "read response", err)
	}

	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return services.Wrap(services.ErrPermanent, "kg", operation, "decode response", err)
	}
	if envelope.Error != nil {
		marker := services.ErrPermanent
		if envelope.Error.Code == "ratelimited" || envelope.Error.Code == "maxlag" {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "kg", operation, "", envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return services.Wrap(services.ErrPermanent, "kg", operation, "decode response", err)
		}
	}
	return nil
}

// ensureLogin performs the bot login and caches a CSRF token. Safe for
// concurrent callers; only the first write pays the login round trips.
func (c *Client) ensureLogin(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.csrfToken != "" {
		return c.csrfToken, nil
	}
	if c.user == "" || c.password == "" {
		return "", services.Wrap(services.ErrConfiguration, "kg", "login",
			"kg credentials missing; writes require kg.user and kg.password", nil)
	}

	var loginToken struct {
		Query struct {
			Tokens struct {
				LoginToken string `json:"logintoken"`
			} `json:"tokens"`
		} `json:"query"`
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "login")
	if err := c.call(ctx, "login token", params, false, &loginToken); err != nil {
		return "", err
	}

	var login struct {
		Login struct {
			Result string `json:"result"`
			Reason string `json:"reason"`
		} `json:"login"`
	}
	params = url.Values{}
	params.Set("action", "login")
	params.Set("lgname", c.user)
	params.Set("lgpassword", c.password)
	params.Set("lgtoken", loginToken.Query.Tokens.LoginToken)
	if err := c.call(ctx, "login", params, true, &login); err != nil {
		return "", err
	}
	if login.Login.Result != "Success" {
		return "", services.Wrap(services.ErrConfiguration, "kg", "login",
			fmt.Sprintf("login rejected: %s %s", login.Login.Result, login.Login.Reason), nil)
	}

	var csrf struct {
		Query struct {
			Tokens struct {
				CSRFToken string `json:"csrftoken"`
			} `json:"tokens"`
		} `json:"query"`
	}
	params = url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "csrf")
	if err := c.call(ctx, "csrf token", params, false, &csrf); err != nil {
		return "", err
	}
	if csrf.Query.Tokens.CSRFToken == "" || csrf.Query.Tokens.CSRFToken == "+\\" {
		return "", services.Wrap(services.ErrConfiguration, "kg", "csrf token",
			"no edit token issued; check bot credentials", nil)
	}
	c.csrfToken = csrf.Query.Tokens.CSRFToken
	return c.csrfToken, nil
}

// invalidateToken drops the cached CSRF token so the next write re-logs in.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.csrfToken = ""
	c.mu.Unlock()
}
