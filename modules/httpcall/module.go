// Package httpcall implements the call action: an outbound HTTP request
// through the App's shared resty client.
package httpcall

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/runtime"
)

// ServiceName is the key the shared HTTP client registers under in the
// App's service table.
const ServiceName = "http-client"

// Module implements the action.Module interface for this package.
type Module struct{}

// Register registers the call action with the registry.
func (m *Module) Register(r *action.Registry) {
	r.Register(&action.Definition{Name: "call", Fn: runCall})
}

var methods = map[string]string{
	"get":     http.MethodGet,
	"post":    http.MethodPost,
	"put":     http.MethodPut,
	"patch":   http.MethodPatch,
	"delete":  http.MethodDelete,
	"head":    http.MethodHead,
	"options": http.MethodOptions,
}

// callTarget extracts the request method and URL from a call statement. The
// URL is the literal clause when it looks like one, otherwise the object's
// resolved value; a specifier naming an HTTP method selects it, and GET is
// the default.
func callTarget(inv *action.Invocation) (method, url string, err error) {
	method = http.MethodGet
	rest := make([]string, 0, len(inv.Object.Specifiers))
	for _, spec := range inv.Object.Specifiers {
		if m, ok := methods[strings.ToLower(spec)]; ok {
			method = m
			continue
		}
		rest = append(rest, spec)
	}

	if v, ok := inv.Slot(runtime.SlotLiteral); ok {
		if s, cErr := runtime.CoerceString(v); cErr == nil && strings.Contains(s, "://") {
			return method, s, nil
		}
	}

	if inv.Object.Base == "" {
		return "", "", fmt.Errorf("statement names no URL")
	}
	v, err := inv.Runtime.ResolvePath(inv.Context, inv.Object.Base, rest)
	if err != nil {
		return "", "", err
	}
	url, err = runtime.CoerceString(v)
	if err != nil {
		return "", "", fmt.Errorf("%q does not resolve to a URL: %w", inv.Object.Base, err)
	}
	return method, url, nil
}

// runCall performs the request. A transport failure is an error; an HTTP
// error status is data, bound as the response's status attribute.
func runCall(ctx context.Context, inv *action.Invocation) (cty.Value, error) {
	svc, err := inv.Service(ServiceName)
	if err != nil {
		return cty.NilVal, err
	}
	client, ok := svc.(*resty.Client)
	if !ok {
		return cty.NilVal, fmt.Errorf("service %q is not an HTTP client", ServiceName)
	}

	method, url, err := callTarget(inv)
	if err != nil {
		return cty.NilVal, fmt.Errorf("call: %w", err)
	}

	req := client.R().SetContext(ctx)
	if body, ok := inv.Slot(runtime.SlotExpression); ok {
		req.SetBody(runtime.ToGo(body))
		req.SetHeader("Content-Type", "application/json")
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Calling external service.", "method", method, "url", url)
	res, err := req.Execute(method, url)
	if err != nil {
		return cty.NilVal, fmt.Errorf("call %s %s: %w", method, url, err)
	}
	logger.Debug("External service responded.", "method", method, "url", url, "status", res.StatusCode())

	return cty.ObjectVal(map[string]cty.Value{
		"status": cty.NumberIntVal(int64(res.StatusCode())),
		"body":   cty.StringVal(res.String()),
	}), nil
}
