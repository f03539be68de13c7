package httpcall

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

type fixture struct {
	ctx  context.Context
	rt   *runtime.Runtime
	root runtime.ContextID
}

func newFixture(t *testing.T, withService bool) *fixture {
	t.Helper()
	logger := ctxlog.Discard()
	ctx := ctxlog.WithLogger(context.Background(), logger)

	services := map[string]any{}
	if withService {
		client := resty.New()
		t.Cleanup(func() { _ = client.Close() })
		services[ServiceName] = client
	}

	reg := action.New()
	(&Module{}).Register(reg)
	rt := runtime.New(runtime.Options{Registry: reg, Bus: bus.New(), Services: services, Logger: logger})
	root := rt.NewRootContext("test")
	t.Cleanup(func() { rt.Shutdown(ctx) })
	return &fixture{ctx: ctx, rt: rt, root: root}
}

func (f *fixture) dispatch(t *testing.T, object program.ObjectDescriptor) (cty.Value, error) {
	t.Helper()
	return f.rt.Dispatch(f.ctx, f.root, "call", program.ResultDescriptor{Base: "response"}, object)
}

func TestCall_GetFromLiteralURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "pong")
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, true)
	require.NoError(t, f.rt.BindValue(f.root, runtime.SlotLiteral, cty.StringVal(srv.URL+"/ping")))

	out, err := f.dispatch(t, program.ObjectDescriptor{})
	require.NoError(t, err)
	assert.True(t, out.GetAttr("status").RawEquals(cty.NumberIntVal(200)))
	assert.True(t, out.GetAttr("body").RawEquals(cty.StringVal("pong")))
}

func TestCall_MethodSpecifierAndJSONBody(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, true)
	require.NoError(t, f.rt.BindString(f.root, "endpoint", srv.URL+"/orders"))
	require.NoError(t, f.rt.BindValue(f.root, runtime.SlotExpression, cty.ObjectVal(map[string]cty.Value{
		"id": cty.NumberIntVal(7),
	})))

	out, err := f.dispatch(t, program.ObjectDescriptor{
		Base:       "endpoint",
		Specifiers: []string{"post"},
	})
	require.NoError(t, err)
	assert.True(t, out.GetAttr("status").RawEquals(cty.NumberIntVal(201)))
	assert.Equal(t, float64(7), gotBody["id"])
}

func TestCall_ErrorStatusIsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, true)
	require.NoError(t, f.rt.BindValue(f.root, runtime.SlotLiteral, cty.StringVal(srv.URL)))

	out, err := f.dispatch(t, program.ObjectDescriptor{})
	require.NoError(t, err)
	assert.True(t, out.GetAttr("status").RawEquals(cty.NumberIntVal(404)))
}

func TestCall_NoURL(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.dispatch(t, program.ObjectDescriptor{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no URL")
}

func TestCall_MissingService(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.rt.BindValue(f.root, runtime.SlotLiteral, cty.StringVal("http://localhost/x")))

	_, err := f.dispatch(t, program.ObjectDescriptor{})
	require.Error(t, err)
	assert.ErrorIs(t, err, action.ErrMissingService)
}

func TestSynonym_RequestMeansCall(t *testing.T) {
	reg := action.New()
	(&Module{}).Register(reg)
	canonical, ok := reg.Canonical("request")
	require.True(t, ok)
	assert.Equal(t, "call", canonical)
}
