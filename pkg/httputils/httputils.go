package httputils

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

type rateLimitedTransport struct {
	limiter ratelimit.Limiter
	inner   http.RoundTripper
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.limiter.Take()
	return t.inner.RoundTrip(req)
}

// NewRetryableHttpClient returns a standard http.Client that retries
// transient failures and paces requests through the given rate limiter.
func NewRetryableHttpClient(timeout time.Duration, rl ratelimit.Limiter, log *logrus.Entry) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	if log != nil {
		retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				log.Debugf("Retrying request (attempt %d): %s %s", attempt, req.Method, req.URL)
			}
		}
	}

	client := retryClient.StandardClient()
	client.Timeout = timeout

	if rl != nil {
		client.Transport = &rateLimitedTransport{
			limiter: rl,
			inner:   client.Transport,
		}
	}

	return client
}
