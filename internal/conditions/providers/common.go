package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/river-hud/internal/conditions"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 8 << 20

// DefaultUserAgent is sent when ClientConfig.UserAgent is empty. NWS rejects
// requests without one.
const DefaultUserAgent = "PittsburghWaterHUD/2.0"

// ClientConfig bundles the HTTP client and per-request settings shared by
// every source client.
type ClientConfig struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

var (
	errNoHTTPClient     = errors.New("http client not configured")
	errUnexpectedStatus = errors.New("unexpected status code")
	errCircuitOpen      = errors.New("circuit breaker open")
)

var validate = validator.New()

// eastern is the local zone of the three rivers; season and date math use it.
var eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// requester performs single-attempt GETs for one source behind a circuit
// breaker and classifies failures into FetchErrors.
type requester struct {
	source  conditions.SourceID
	cfg     ClientConfig
	circuit *gobreaker.CircuitBreaker
}

func newRequester(source conditions.SourceID, cfg ClientConfig) *requester {
	return newNamedRequester(source, string(source), cfg)
}

// newNamedRequester is newRequester with its own breaker name, for sources
// that keep more than one breaker.
func newNamedRequester(source conditions.SourceID, breaker string, cfg ClientConfig) *requester {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	logger := cfg.Logger
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breaker,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "source", string(source), "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &requester{source: source, cfg: cfg, circuit: cb}
}

func (r *requester) now() time.Time {
	return r.cfg.Clock.Now()
}

// get fetches rawURL once and returns the body. Any failure is a *FetchError.
func (r *requester) get(ctx context.Context, rawURL string, accept string) ([]byte, error) {
	if r.cfg.Client == nil {
		return nil, conditions.NewFetchError(r.source, conditions.FetchHTTPError, errNoHTTPClient)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, conditions.NewFetchError(r.source, conditions.FetchHTTPError, err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	result, err := r.circuit.Execute(func() (interface{}, error) {
		resp, execErr := r.cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if readErr != nil {
			return nil, readErr
		}
		return body, nil
	})
	if err != nil {
		return nil, r.classify(err)
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, conditions.NewFetchError(r.source, conditions.FetchHTTPError, fmt.Errorf("unexpected result type from circuit breaker"))
	}
	return body, nil
}

func (r *requester) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return conditions.NewFetchError(r.source, conditions.FetchHTTPError, fmt.Errorf("%w: %v", errCircuitOpen, err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return conditions.NewFetchError(r.source, conditions.FetchTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return conditions.NewFetchError(r.source, conditions.FetchTimeout, err)
	}
	return conditions.NewFetchError(r.source, conditions.FetchHTTPError, err)
}

// decode unmarshals body into v and checks its required fields.
func (r *requester) decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return conditions.NewFetchError(r.source, conditions.FetchParseError, err)
	}
	if err := validate.Struct(v); err != nil {
		return conditions.NewFetchError(r.source, conditions.FetchParseError, err)
	}
	return nil
}

func (r *requester) parseError(format string, args ...any) error {
	return conditions.NewFetchError(r.source, conditions.FetchParseError, fmt.Errorf(format, args...))
}

func (r *requester) empty(format string, args ...any) error {
	return conditions.NewFetchError(r.source, conditions.FetchEmptyResult, fmt.Errorf(format, args...))
}

// record wraps a payload in a fresh SourceRecord.
func (r *requester) record(observed time.Time, payload conditions.Payload) conditions.SourceRecord {
	now := r.now()
	if observed.IsZero() {
		observed = now
	}
	return conditions.SourceRecord{
		Source:     r.source,
		ObservedAt: observed.UTC(),
		FetchedAt:  now,
		Payload:    payload,
		Status:     conditions.StatusFresh,
	}
}
