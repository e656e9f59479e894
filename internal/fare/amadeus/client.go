// Package amadeus provides a fare.Provider backed by the Amadeus
// flight-offers API.
package amadeus

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
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weekendfare/weekendfare/internal/fare"
	"github.com/weekendfare/weekendfare/internal/provider/resilience"
)

const (
	// ProviderName identifies this fare provider.
	ProviderName = "amadeus"

	// DefaultBaseURL is the Amadeus test-environment API base URL.
	DefaultBaseURL = "https://test.api.amadeus.com"

	// ProductionBaseURL is the Amadeus production API base URL.
	ProductionBaseURL = "https://api.amadeus.com"

	// DefaultTimeout is the default request timeout. Fare searches routinely
	// take several seconds.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxOffers caps how many offers are requested per date pair.
	DefaultMaxOffers = 20

	// tokenExpirySlack refreshes the OAuth token slightly before it expires.
	tokenExpirySlack = 30 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Amadeus client.
type ClientConfig struct {
	// ClientID and ClientSecret are the Amadeus API credentials (required).
	ClientID     string
	ClientSecret string

	// BaseURL is the API base URL (optional, defaults to the test environment).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional). If nil, a resilient
	// client with defaults is created.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 30s).
	Timeout time.Duration

	// MaxOffers caps offers requested per date pair (optional, default 20).
	MaxOffers int

	// Currency is the quote currency (optional, default USD).
	Currency string

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Amadeus flight-offers API client.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	maxOffers    int
	currency     string
	httpClient   HTTPDoer
	logger       zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new Amadeus client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	maxOffers := cfg.MaxOffers
	if maxOffers <= 0 {
		maxOffers = DefaultMaxOffers
	}

	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		baseURL:      baseURL,
		maxOffers:    maxOffers,
		currency:     currency,
		httpClient:   httpClient,
		logger:       cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Lookup returns priced round-trip itineraries for one date pair.
// An empty slice means no itineraries exist for that pair; it is not an error.
func (c *Client) Lookup(ctx context.Context, origin, destination string, pair fare.DatePair) ([]fare.Quote, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, &fare.Error{
			Provider: ProviderName,
			Code:     "AUTH_FAILED",
			Message:  "failed to authenticate with fare provider",
			Err:      errors.Join(fare.ErrProviderUnavailable, err),
		}
	}

	query := url.Values{}
	query.Set("originLocationCode", origin)
	query.Set("destinationLocationCode", destination)
	query.Set("departureDate", pair.Depart.Format(time.DateOnly))
	query.Set("returnDate", pair.Return.Format(time.DateOnly))
	query.Set("adults", "1")
	query.Set("currencyCode", c.currency)
	query.Set("max", strconv.Itoa(c.maxOffers))

	reqURL := c.baseURL + "/v2/shopping/flight-offers?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("origin", origin).
		Str("destination", destination).
		Str("pair", pair.String()).
		Msg("requesting flight offers")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var rateErr *resilience.RateLimitError
		if errors.As(err, &rateErr) {
			return nil, &fare.Error{
				Provider: ProviderName,
				Code:     "RATE_LIMITED",
				Message:  "fare provider rate limit exceeded",
				Err:      fare.ErrRateLimitExceeded,
			}
		}
		// Keep the transport error in the chain so callers can tell a
		// deadline from a dead provider.
		return nil, &fare.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach fare provider",
			Err:      errors.Join(fare.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromStatus(resp.StatusCode, respBody)
	}

	var offers offersResponse
	if err := json.Unmarshal(respBody, &offers); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	quotes := make([]fare.Quote, 0, len(offers.Data))
	for _, offer := range offers.Data {
		quote, ok := c.toQuote(offer, offers.Dictionaries, pair)
		if !ok {
			continue
		}
		quotes = append(quotes, quote)
	}

	c.logger.Debug().
		Str("pair", pair.String()).
		Int("offers", len(offers.Data)).
		Int("quotes", len(quotes)).
		Msg("parsed flight offers")

	return quotes, nil
}

// token returns a valid OAuth access token, refreshing it when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.accessToken
	valid := token != "" && time.Now().Before(c.tokenExpiry)
	c.mu.Unlock()

	if valid {
		return token, nil
	}
	return c.refreshToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed (%d)", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}

	c.mu.Lock()
	c.accessToken = result.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn)*time.Second - tokenExpirySlack)
	c.mu.Unlock()

	c.logger.Debug().Int("expires_in", result.ExpiresIn).Msg("refreshed provider access token")
	return result.AccessToken, nil
}

func (c *Client) errorFromStatus(status int, body []byte) error {
	var apiErr struct {
		Errors []struct {
			Code   int    `json:"code"`
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	detail := ""
	if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.Errors) > 0 {
		detail = apiErr.Errors[0].Title
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &fare.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMITED",
			Message:  "fare provider rate limit exceeded",
			Err:      fare.ErrRateLimitExceeded,
		}
	case status >= 500:
		return &fare.Error{
			Provider: ProviderName,
			Code:     "SERVER_ERROR",
			Message:  "fare provider server error",
			Err:      fare.ErrProviderUnavailable,
		}
	default:
		msg := fmt.Sprintf("fare lookup rejected (%d)", status)
		if detail != "" {
			msg = msg + ": " + detail
		}
		return &fare.Error{
			Provider: ProviderName,
			Code:     "LOOKUP_REJECTED",
			Message:  msg,
		}
	}
}

// toQuote converts one flight offer into a fare.Quote. Offers missing the two
// round-trip itineraries or with unparseable fields are skipped.
func (c *Client) toQuote(offer flightOffer, dict dictionaries, pair fare.DatePair) (fare.Quote, bool) {
	if len(offer.Itineraries) < 2 {
		return fare.Quote{}, false
	}

	priceCents, err := parsePriceCents(offer.Price.GrandTotal)
	if err != nil {
		c.logger.Warn().Str("price", offer.Price.GrandTotal).Msg("skipping offer with unparseable price")
		return fare.Quote{}, false
	}

	outbound, ok := toLeg(offer.Itineraries[0], dict)
	if !ok {
		return fare.Quote{}, false
	}
	ret, ok := toLeg(offer.Itineraries[1], dict)
	if !ok {
		return fare.Quote{}, false
	}

	return fare.Quote{
		Pair:       pair,
		Outbound:   outbound,
		Return:     ret,
		PriceCents: priceCents,
		Currency:   offer.Price.Currency,
		Provider:   ProviderName,
	}, true
}

func toLeg(it itinerary, dict dictionaries) (fare.Leg, bool) {
	if len(it.Segments) == 0 {
		return fare.Leg{}, false
	}

	first := it.Segments[0]
	last := it.Segments[len(it.Segments)-1]

	departAt, err := parseLocalTime(first.Departure.At)
	if err != nil {
		return fare.Leg{}, false
	}
	arriveAt, err := parseLocalTime(last.Arrival.At)
	if err != nil {
		return fare.Leg{}, false
	}

	carrierCode := first.CarrierCode
	carrier := dict.Carriers[carrierCode]
	if carrier == "" {
		carrier = carrierCode
	}

	return fare.Leg{
		Carrier:      carrier,
		CarrierCode:  carrierCode,
		FlightNumber: carrierCode + first.Number,
		DepartAt:     departAt,
		ArriveAt:     arriveAt,
		Duration:     parseISODuration(it.Duration),
		Stops:        len(it.Segments) - 1,
	}, true
}

// parseLocalTime parses the provider's zone-naive timestamps, e.g.
// "2026-03-05T08:15:00".
func parseLocalTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05", s)
}

// parsePriceCents parses a decimal amount like "214.30" into cents.
func parsePriceCents(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	whole, frac, _ := strings.Cut(s, ".")
	cents, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	cents *= 100
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, err
		}
		cents += f
	}
	return cents, nil
}

// parseISODuration parses ISO 8601 durations like "PT6H30M". Unparseable
// values yield zero.
func parseISODuration(s string) time.Duration {
	s = strings.TrimPrefix(s, "PT")
	var d time.Duration
	if h, rest, found := strings.Cut(s, "H"); found {
		if v, err := strconv.Atoi(h); err == nil {
			d += time.Duration(v) * time.Hour
		}
		s = rest
	}
	if m, _, found := strings.Cut(s, "M"); found {
		if v, err := strconv.Atoi(m); err == nil {
			d += time.Duration(v) * time.Minute
		}
	}
	return d
}

// Wire types for the flight-offers response.

type offersResponse struct {
	Data         []flightOffer `json:"data"`
	Dictionaries dictionaries  `json:"dictionaries"`
}

type dictionaries struct {
	Carriers map[string]string `json:"carriers"`
}

type flightOffer struct {
	ID          string      `json:"id"`
	Itineraries []itinerary `json:"itineraries"`
	Price       struct {
		Currency   string `json:"currency"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
}

type itinerary struct {
	Duration string    `json:"duration"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Departure   endpoint `json:"departure"`
	Arrival     endpoint `json:"arrival"`
	CarrierCode string   `json:"carrierCode"`
	Number      string   `json:"number"`
}

type endpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}
