package api

import (
	"context"
	"errors"
	"fmt"
	"gwent-profile-helper/internal/config"
	"gwent-profile-helper/internal/constants"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

var ErrUnexpectedStatus = errors.New("unexpected upstream status")

// StatusError carries the upstream status code of a non-200 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d for %s", ErrUnexpectedStatus, e.Code, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// ProfileClient downloads public profile pages from the upstream site. Requests carry
// no credentials and are never retried.
type ProfileClient struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

func NewProfileClient(cfg *config.Config, logger zerolog.Logger) *ProfileClient {
	limit := rate.Inf
	if cfg.UpstreamRPS > 0 {
		limit = rate.Limit(cfg.UpstreamRPS)
	}

	c := &ProfileClient{
		baseURL: BaseURL(cfg.UpstreamHost),
		timeout: cfg.UpstreamTimeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     constants.UpstreamMaxConnsPerHost,
			ReadTimeout:         cfg.UpstreamTimeout,
			WriteTimeout:        cfg.UpstreamTimeout,
			MaxIdleConnDuration: constants.UpstreamMaxIdleConnDur,
			MaxResponseBodySize: constants.UpstreamMaxResponseBytes,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "upstream-profile",
		Timeout: constants.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.BreakerFailureThreshold
		},
		// unknown players answer 404, that says nothing about upstream health
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			return err == nil || (errors.As(err, &statusErr) && statusErr.Code == fasthttp.StatusNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return c
}

// BaseURL turns a bare host into an https origin. Hosts that already carry a scheme
// are used as given.
func BaseURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

func (c *ProfileClient) ProfileURL(locale, nick string) string {
	return fmt.Sprintf("%s/%s/profile/%s", c.baseURL, locale, url.PathEscape(nick))
}

func (c *ProfileClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// GetProfilePage returns the HTML of nick's profile page in the given locale.
func (c *ProfileClient) GetProfilePage(ctx context.Context, locale, nick string) (string, error) {
	return c.GetPage(ctx, c.ProfileURL(locale, nick))
}

func (c *ProfileClient) GetPage(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, pageURL)
	})
	if err != nil {
		return "", err
	}
	return body.(string), nil
}

func (c *ProfileClient) doRequest(ctx context.Context, pageURL string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(pageURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	// profile URLs are canonicalised upstream (nick case, locale) with a redirect
	req.SetTimeout(time.Until(deadline))
	start := time.Now()
	if err := c.client.DoRedirects(req, resp, constants.UpstreamMaxRedirects); err != nil {
		return "", fmt.Errorf("request %s: %w", pageURL, err)
	}

	c.logger.Debug().
		Str("url", pageURL).
		Int("status", resp.StatusCode()).
		Dur("took", time.Since(start)).
		Msg("upstream response")

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", &StatusError{Code: resp.StatusCode(), URL: pageURL}
	}

	return string(resp.Body()), nil
}
