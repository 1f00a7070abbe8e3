package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tx/0xgood":
			w.WriteHeader(http.StatusOK)
		case "/tx/0xmissing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL)
	ctx := context.Background()

	stamp, err := v.Verify(ctx, "0xgood")
	require.NoError(t, err)
	assert.True(t, stamp.Verified)
	assert.False(t, stamp.CheckedAt.IsZero())

	stamp, err = v.Verify(ctx, "0xmissing")
	require.NoError(t, err)
	assert.False(t, stamp.Verified)
	assert.Equal(t, "tx not found", stamp.Detail)

	_, err = v.Verify(ctx, "0xboom")
	assert.ErrorContains(t, err, "500")
}

func TestDisabled(t *testing.T) {
	stamp, err := Disabled{}.Verify(context.Background(), "0xany")
	require.NoError(t, err)
	assert.False(t, stamp.Verified)
	assert.Equal(t, "verification disabled", stamp.Detail)
}
