package cli

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/remote/httpapi"
	"github.com/roach88/calcsync/internal/testutil"
)

func TestServeShutsDownWhenContextEnds(t *testing.T) {
	st := testutil.NewStore(t, testutil.CarCatalog)
	logger := newLogger(&RootOptions{}, io.Discard)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, httpapi.NewHandler(st, logger), logger)
	}()

	client := httpapi.NewClient("http://" + ln.Addr().String())
	res, err := client.Drilldown(context.Background(), "/transport/car", nil)
	require.NoError(t, err)
	assert.Equal(t, "fuel", res.Next)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get("http://" + ln.Addr().String())
	assert.Error(t, err)
}

func TestServeRequiresDatabase(t *testing.T) {
	opts := testOptions(t)
	opts.Config.DB = ""

	_, err := execute(t, NewServeCommand(opts))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database configured")
}
