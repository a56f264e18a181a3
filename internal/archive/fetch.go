package archive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	perr "dukafeed/internal/platform/errors"
	"dukafeed/internal/platform/logger"
)

const (
	defaultReadTimeout = 30 * time.Second
	defaultMaxRetries  = 3
	defaultIdlePerHost = 16
)

// Fetcher is the public contract of 4.D: fetch(url) -> Blob | EmptyHour | Error.
// A nil error with a nil blob means EmptyHour
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a single pooled HTTP client shared across every task:
// keep-alive on, a bounded idle pool per host, and a read timeout per
// attempt. It retries connection resets, timeouts, 5xx and 429 with a
// fixed-cap exponential backoff (1s, 2s, 4s by default); 429 honors
// Retry-After when present. 404 and zero-length 200 both map to
// EmptyHour, never consuming the retry budget. 400/401/403/410 are
// Permanent and abort immediately
type HTTPFetcher struct {
	Client          *http.Client
	ReadTimeout     time.Duration
	MaxRetries      int
	InitialInterval time.Duration // backoff start; tests shrink this
}

// NewHTTPFetcher builds a fetcher with the defaults from 4.D
func NewHTTPFetcher() *HTTPFetcher {
	tr := &http.Transport{
		MaxIdleConnsPerHost: defaultIdlePerHost,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		Client:          &http.Client{Transport: tr},
		ReadTimeout:     defaultReadTimeout,
		MaxRetries:      defaultMaxRetries,
		InitialInterval: time.Second,
	}
}

// Fetch performs the GET with retry/backoff per 4.D. Returns (nil, nil) for
// EmptyHour
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	log := logger.C(ctx).With().Str("url", url).Logger()

	var body []byte
	attempt := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.InitialInterval
	bo.Multiplier = 2
	// no jitter: delays are exactly 1s, 2s, 4s with the default interval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // capped by MaxRetries below, not wall clock
	policy := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(f.MaxRetries))

	op := func() error {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, f.ReadTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(perr.Wrap(err, perr.KindPermanent, "build request"))
		}

		resp, err := f.Client.Do(req)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("fetch attempt failed")
			return perr.Wrap(err, perr.KindTransient, "request failed")
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			body = nil
			return nil

		case resp.StatusCode == http.StatusOK:
			b, rerr := io.ReadAll(resp.Body)
			if rerr != nil {
				return perr.Wrap(rerr, perr.KindTransient, "read body")
			}
			if len(b) == 0 {
				body = nil
				return nil
			}
			body = b
			return nil

		case resp.StatusCode == http.StatusTooManyRequests:
			if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return perr.Newf(perr.KindTransient, "status %d", resp.StatusCode)

		case resp.StatusCode >= 500:
			return perr.Newf(perr.KindTransient, "status %d", resp.StatusCode)

		default:
			return backoff.Permanent(perr.Newf(perr.KindPermanent, "status %d", resp.StatusCode))
		}
	}

	err := backoff.Retry(op, policy)
	if err == nil {
		return body, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return nil, perm.Err
	}
	return nil, perr.Wrap(err, perr.KindTransient, "retries exhausted")
}

// retryAfter parses a Retry-After header given in seconds; malformed or
// absent values return zero
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
