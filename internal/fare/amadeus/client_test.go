package amadeus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weekendfare/weekendfare/internal/fare"
	"github.com/weekendfare/weekendfare/internal/provider/resilience"
	"github.com/weekendfare/weekendfare/internal/search"
)

const tokenResponse = `{"access_token":"test-token","expires_in":1799}`

const offersFixture = `{
  "data": [
    {
      "id": "1",
      "itineraries": [
        {
          "duration": "PT6H30M",
          "segments": [
            {
              "departure": {"iataCode": "SFO", "at": "2026-03-05T08:00:00"},
              "arrival": {"iataCode": "BOS", "at": "2026-03-05T16:30:00"},
              "carrierCode": "UA",
              "number": "312"
            }
          ]
        },
        {
          "duration": "PT7H05M",
          "segments": [
            {
              "departure": {"iataCode": "BOS", "at": "2026-03-08T17:00:00"},
              "arrival": {"iataCode": "DEN", "at": "2026-03-08T20:00:00"},
              "carrierCode": "UA",
              "number": "501"
            },
            {
              "departure": {"iataCode": "DEN", "at": "2026-03-08T21:15:00"},
              "arrival": {"iataCode": "SFO", "at": "2026-03-08T23:05:00"},
              "carrierCode": "UA",
              "number": "992"
            }
          ]
        }
      ],
      "price": {"currency": "USD", "grandTotal": "214.30"}
    }
  ],
  "dictionaries": {"carriers": {"UA": "UNITED AIRLINES"}}
}`

func testPair() fare.DatePair {
	return fare.DatePair{
		Depart: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
		Return: time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, offersHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenResponse))
	})
	mux.HandleFunc("/v2/shopping/flight-offers", offersHandler)
	return httptest.NewServer(mux)
}

func TestClient_Lookup_ParsesOffers(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "SFO", r.URL.Query().Get("originLocationCode"))
		assert.Equal(t, "BOS", r.URL.Query().Get("destinationLocationCode"))
		assert.Equal(t, "2026-03-05", r.URL.Query().Get("departureDate"))
		assert.Equal(t, "2026-03-08", r.URL.Query().Get("returnDate"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(offersFixture))
	})
	defer server.Close()

	client := NewClient(ClientConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      server.URL,
		HTTPClient:   http.DefaultClient,
	})

	quotes, err := client.Lookup(context.Background(), "SFO", "BOS", testPair())
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	q := quotes[0]
	assert.Equal(t, int64(21430), q.PriceCents)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "UNITED AIRLINES", q.Outbound.Carrier)
	assert.Equal(t, "UA", q.Outbound.CarrierCode)
	assert.Equal(t, "UA312", q.Outbound.FlightNumber)
	assert.Equal(t, 0, q.Outbound.Stops)
	assert.Equal(t, 1, q.Return.Stops)
	assert.Equal(t, 6*time.Hour+30*time.Minute, q.Outbound.Duration)
	assert.Equal(t, 7*time.Hour+5*time.Minute, q.Return.Duration)
	assert.Equal(t, testPair(), q.Pair)
}

func TestClient_Lookup_EmptyDataIsNotAnError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	defer server.Close()

	client := NewClient(ClientConfig{
		ClientID:   "id",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	quotes, err := client.Lookup(context.Background(), "SFO", "BOS", testPair())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestClient_Lookup_RateLimited(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	client := NewClient(ClientConfig{
		ClientID:   "id",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	_, err := client.Lookup(context.Background(), "SFO", "BOS", testPair())
	require.Error(t, err)
	assert.ErrorIs(t, err, fare.ErrRateLimitExceeded)

	var fareErr *fare.Error
	require.ErrorAs(t, err, &fareErr)
	assert.True(t, fareErr.IsRetryable())
}

func TestClient_Lookup_DeadlineStaysInChain(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	defer server.Close()

	client := NewClient(ClientConfig{
		ClientID:   "id",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Lookup(ctx, "SFO", "BOS", testPair())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, fare.ErrProviderUnavailable)
}

func TestClient_Lookup_RateLimitAfterRetriesExhausted(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	clientCfg := resilience.DefaultClientConfig(ProviderName)
	clientCfg.MaxRetries = 1
	clientCfg.InitialInterval = time.Millisecond
	client := NewClient(ClientConfig{
		ClientID:   "id",
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(clientCfg),
	})

	_, err := client.Lookup(context.Background(), "SFO", "BOS", testPair())
	require.Error(t, err)
	assert.ErrorIs(t, err, fare.ErrRateLimitExceeded)

	var fareErr *fare.Error
	require.ErrorAs(t, err, &fareErr)
	assert.Equal(t, "RATE_LIMITED", fareErr.Code)
	assert.True(t, fareErr.IsRetryable())
}

func TestClient_SlowLookupReportedAsTimeout(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	defer server.Close()

	client := NewClient(ClientConfig{
		ClientID:   "id",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	svc := search.NewService(search.ServiceConfig{
		Provider:      client,
		Logger:        zerolog.Nop(),
		LookupTimeout: 50 * time.Millisecond,
		CacheTTL:      -1,
	})

	result, err := svc.Run(context.Background(), search.Request{
		Origin:      "SFO",
		Destination: "BOS",
		Window: fare.TravelWindow{
			EarliestDepart: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
			LatestReturn:   time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
			MinNights:      2,
			MaxNights:      4,
		},
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Failures)
	for _, f := range result.Failures {
		assert.Equal(t, search.ReasonTimeout, f.Reason)
	}
}

func TestClient_Lookup_ServerError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	client := NewClient(ClientConfig{
		ClientID:   "id",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	_, err := client.Lookup(context.Background(), "SFO", "BOS", testPair())
	assert.ErrorIs(t, err, fare.ErrProviderUnavailable)
}

func TestClient_TokenIsReused(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		_, _ = w.Write([]byte(tokenResponse))
	})
	mux.HandleFunc("/v2/shopping/flight-offers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(ClientConfig{
		ClientID:   "id",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	for i := 0; i < 3; i++ {
		_, err := client.Lookup(context.Background(), "SFO", "BOS", testPair())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestParsePriceCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"214.30", 21430, false},
		{"99", 9900, false},
		{"0.5", 50, false},
		{"1200.00", 120000, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePriceCents(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseISODuration(t *testing.T) {
	assert.Equal(t, 6*time.Hour+30*time.Minute, parseISODuration("PT6H30M"))
	assert.Equal(t, 45*time.Minute, parseISODuration("PT45M"))
	assert.Equal(t, 2*time.Hour, parseISODuration("PT2H"))
	assert.Equal(t, time.Duration(0), parseISODuration("bogus"))
}
