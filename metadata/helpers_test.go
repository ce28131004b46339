package metadata

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"

	"go.gcemeta.io/gcemeta/lib/testutils"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// metadataResponse builds a response carrying the genuine flavor header.
func metadataResponse(status int, body string) *http.Response {
	header := http.Header{}
	header.Set(flavorHeader, flavorValue)
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// newTestClient returns a client with residency pinned to false, so tests
// never read DMI files, and a short retry interval.
func newTestClient(t testing.TB, host string, config Config) *Client {
	return newTestClientWithLogger(t, testutils.NewLogger(t), host, config)
}

func newTestClientWithLogger(t testing.TB, logger *logrus.Logger, host string, config Config) *Client {
	t.Helper()
	c := NewClient(logger, host, config)
	c.retryInterval = time.Millisecond
	c.SetResidency(null.BoolFrom(false))
	return c
}
