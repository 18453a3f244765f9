package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway/permission"
)

type memFiles map[string][]byte

func (m memFiles) Load(handle, path string) ([]byte, error) {
	bs, have := m[handle+"/"+path]
	if !have {
		return nil, errInvalidPath
	}
	return bs, nil
}

var errInvalidPath = assertError("no such file")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestHostLogRecordsEntries(t *testing.T) {
	h := New(permission.NewRootFrame(nil, nil), nil, nil, nil, nil, nil)
	h.LogInfo("hello")
	h.LogError("boom")
	logs := h.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "info", logs[0].Level)
	assert.Equal(t, "boom", logs[1].Message)
}

func TestHostEnvDeniedWithoutPermission(t *testing.T) {
	h := New(permission.NewRootFrame(nil, nil), nil, nil, nil, MapEnv{"FOO": "bar"}, nil)
	_, have := h.Env("FOO")
	assert.False(t, have)
}

func TestHostEnvAllowedWithPermission(t *testing.T) {
	frame := permission.NewRootFrame([]permission.Permission{permission.Env("FOO")}, nil)
	h := New(frame, nil, nil, nil, MapEnv{"FOO": "bar"}, nil)
	v, have := h.Env("FOO")
	require.True(t, have)
	assert.Equal(t, "bar", v)
}

func TestHostFilesRespectsHandleAndPathPrefix(t *testing.T) {
	frame := permission.NewRootFrame([]permission.Permission{permission.Files("assets", "images/")}, nil)
	h := New(frame, nil, memFiles{"assets/images/logo.png": []byte("PNG")}, nil, nil, nil)

	bs, err := h.LoadBin("assets", "images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNG"), bs)

	_, err = h.LoadBin("assets", "secrets/key.pem")
	require.Error(t, err)
	var denied *permission.Denied
	assert.ErrorAs(t, err, &denied)
}

func TestHostFetchTextHonoursHTTPPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hi"))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(2 * time.Second)
	require.NoError(t, err)

	frame := permission.NewRootFrame([]permission.Permission{permission.HTTP(srv.URL)}, nil)
	h := New(frame, client, nil, nil, nil, nil)

	out, err := h.FetchText(context.Background(), srv.URL+"/path", nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"status":200`)
}

func TestHostFetchDeniedOutsidePrefix(t *testing.T) {
	frame := permission.NewRootFrame([]permission.Permission{permission.HTTP("https://allowed.example/")}, nil)
	h := New(frame, &http.Client{}, nil, nil, nil, nil)

	_, err := h.FetchText(context.Background(), "https://denied.example/x", nil)
	require.Error(t, err)
	var denied *permission.Denied
	assert.ErrorAs(t, err, &denied)
}

func TestHostEncodeDecodeBinRoundTrips(t *testing.T) {
	h := New(permission.NewRootFrame(nil, nil), nil, nil, nil, nil, nil)
	encoded := h.EncodeBin([]byte("hello"))
	decoded, err := h.DecodeBin(encoded)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(decoded))
}

type stubDispatcher struct {
	out []byte
}

func (s stubDispatcher) Dispatch(ctx context.Context, handle string, input []byte) ([]byte, error) {
	return s.out, nil
}

func TestHostRunRespectsCalloutPermission(t *testing.T) {
	frame := permission.NewRootFrame([]permission.Permission{permission.Callouts("increment")}, nil)
	h := New(frame, nil, nil, nil, nil, stubDispatcher{out: []byte(`{"value":2}`)})

	out, err := h.Run(context.Background(), "increment", []byte(`{"value":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":2}`, string(out))

	_, err = h.Run(context.Background(), "other", []byte(`{}`))
	require.Error(t, err)
}
