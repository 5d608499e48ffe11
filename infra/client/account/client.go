/*
Package account resolves participant profiles from the account service
over HTTP. Lookups are cached per identifier and guarded by a circuit
breaker so a struggling account service degrades lookups instead of
stalling every identification.
*/
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/service"
)

const (
	detailsPath    = "/api/v1/account-service/users/details"
	requestTimeout = 5 * time.Second
	cacheSize      = 10000

	breakerCooldown    = 30 * time.Second
	breakerTripAfter   = 5
	breakerHalfOpenCap = 3
)

// ErrUnknownParticipant reports an identifier the account service does
// not answer 200 for.
var ErrUnknownParticipant = errors.New("account: unknown participant")

// Interface guard
var _ service.AccountDirectory = (*Client)(nil)

// detailsDocument is the JSON body of a details response.
type detailsDocument struct {
	Identifier string `json:"identifier"`
	Nickname   string `json:"nickname"`
	Email      string `json:"email"`
	PhotoURL   string `json:"photo_url"`
}

type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker
	cache   *lru.Cache[string, *model.Participant]
}

func New(baseURL string, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("account: parse base url: %w", err)
	}

	// [MEMORY_MANAGEMENT] Pre-allocated LRU cache to keep hot identities
	// off the network.
	cache, _ := lru.New[string, *model.Participant](cacheSize)

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger,
		cache:  cache,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "account-service",
		MaxRequests: breakerHalfOpenCap,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logger.Warn("ACCOUNT_BREAKER_STATE", "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

func (c *Client) FetchDetails(ctx context.Context, identifier string) (*model.Participant, error) {
	// [HOT_PATH] Check the LRU cache before touching the wire.
	if cached, ok := c.cache.Get(identifier); ok {
		clone := *cached
		return &clone, nil
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, identifier)
	})
	if err != nil {
		return nil, err
	}
	details := result.(*model.Participant)

	// [CACHE_POPULATION] Only confirmed identities are worth keeping.
	c.cache.Add(identifier, details)

	clone := *details
	return &clone, nil
}

func (c *Client) fetch(ctx context.Context, identifier string) (*model.Participant, error) {
	endpoint := *c.base
	endpoint.Path = path.Join(endpoint.Path, detailsPath)
	query := endpoint.Query()
	query.Set("identifier", identifier)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("account: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account: fetch details: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s answered %d", ErrUnknownParticipant, identifier, resp.StatusCode)
	}

	var doc detailsDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("account: decode details: %w", err)
	}

	return &model.Participant{
		Identifier: identifier,
		Nickname:   doc.Nickname,
		Email:      doc.Email,
		PhotoURL:   doc.PhotoURL,
	}, nil
}

// Close releases pooled transport connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
