package metadata

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// raceTransport routes requests to per-host handlers, so race tests control
// each probe path without real sockets.
func raceTransport(handlers map[string]func(*http.Request) (*http.Response, error)) roundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		h, ok := handlers[r.URL.Host]
		if !ok {
			panic("unexpected host " + r.URL.Host)
		}
		return h(r)
	}
}

func raceHosts() []string {
	return []string{primaryHost, secondaryHost}
}

func TestRaceGetPrimaryWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := newTestClient(t, "", NewConfig())
	client.client.Transport = raceTransport(map[string]func(*http.Request) (*http.Response, error){
		primaryHost: func(*http.Request) (*http.Response, error) {
			return metadataResponse(200, "primary"), nil
		},
		secondaryHost: func(*http.Request) (*http.Response, error) {
			time.Sleep(20 * time.Millisecond)
			return metadataResponse(200, "secondary"), nil
		},
	})

	val, err := client.raceGet(context.Background(), raceHosts(), "instance", getOptions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "primary", val.Text())
}

func TestRaceGetPrimaryWinsWhileSecondaryHangs(t *testing.T) {
	client := newTestClient(t, "", NewConfig())
	block := make(chan struct{})
	defer close(block)

	client.client.Transport = raceTransport(map[string]func(*http.Request) (*http.Response, error){
		primaryHost: func(*http.Request) (*http.Response, error) {
			return metadataResponse(200, "primary"), nil
		},
		secondaryHost: func(*http.Request) (*http.Response, error) {
			<-block
			return nil, assert.AnError
		},
	})

	done := make(chan struct{})
	var val *Value
	var err error
	go func() {
		defer close(done)
		val, err = client.raceGet(context.Background(), raceHosts(), "instance", getOptions{}, 0)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("race did not resolve while the secondary path was hung")
	}
	require.NoError(t, err)
	assert.Equal(t, "primary", val.Text())
}

func TestRaceGetSecondarySucceedsAfterPrimaryFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := newTestClient(t, "", NewConfig())
	client.client.Transport = raceTransport(map[string]func(*http.Request) (*http.Response, error){
		primaryHost: func(*http.Request) (*http.Response, error) {
			return nil, assert.AnError
		},
		secondaryHost: func(*http.Request) (*http.Response, error) {
			time.Sleep(20 * time.Millisecond)
			return metadataResponse(200, "secondary"), nil
		},
	})

	// a fast primary failure must not mask the slower secondary success
	val, err := client.raceGet(context.Background(), raceHosts(), "instance", getOptions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "secondary", val.Text())
}

func TestRaceGetPrimarySucceedsAfterSecondaryFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := newTestClient(t, "", NewConfig())
	client.client.Transport = raceTransport(map[string]func(*http.Request) (*http.Response, error){
		primaryHost: func(*http.Request) (*http.Response, error) {
			time.Sleep(20 * time.Millisecond)
			return metadataResponse(200, "primary"), nil
		},
		secondaryHost: func(*http.Request) (*http.Response, error) {
			return nil, assert.AnError
		},
	})

	val, err := client.raceGet(context.Background(), raceHosts(), "instance", getOptions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "primary", val.Text())
}

func TestRaceGetBothFailSurfacesPrimaryError(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("primary fails first", func(t *testing.T) {
		client := newTestClient(t, "", NewConfig())
		client.client.Transport = raceTransport(map[string]func(*http.Request) (*http.Response, error){
			primaryHost: func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
			},
			secondaryHost: func(*http.Request) (*http.Response, error) {
				time.Sleep(20 * time.Millisecond)
				return nil, assert.AnError
			},
		})

		_, err := client.raceGet(context.Background(), raceHosts(), "instance", getOptions{}, 0)
		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("primary fails last", func(t *testing.T) {
		client := newTestClient(t, "", NewConfig())
		client.client.Transport = raceTransport(map[string]func(*http.Request) (*http.Response, error){
			primaryHost: func(*http.Request) (*http.Response, error) {
				time.Sleep(20 * time.Millisecond)
				return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
			},
			secondaryHost: func(*http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		})

		// the surfaced error is the primary's even though it lost the race
		_, err := client.raceGet(context.Background(), raceHosts(), "instance", getOptions{}, 0)
		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
	})
}
