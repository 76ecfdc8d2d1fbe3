// Package pipeline is the outbound HTTP client every backend call goes
// through. It attaches the session credential and reacts to 401/403 in one
// place.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

// Doer is satisfied by *fasthttp.Client.
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Session is the part of the session manager the pipeline needs.
type Session interface {
	Credential(ctx context.Context) (string, error)
	ClearCredentialIf(ctx context.Context, raw string) (bool, error)
}

type Request struct {
	Method string
	Path   string
	Body   any
	Header map[string]string
}

type Response struct {
	StatusCode int
	Body       []byte
}

type Client struct {
	baseURL string
	doer    Doer
	session Session
	logger  *slog.Logger
}

func NewClient(baseURL string, doer Doer, session Session, logger *slog.Logger) *Client {
	if doer == nil {
		doer = &fasthttp.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		doer:    doer,
		session: session,
		logger:  logger,
	}
}

func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindRequestNotSent, Err: err}
	}

	var payload []byte
	if r.Body != nil {
		var err error
		if payload, err = sonic.Marshal(r.Body); err != nil {
			return nil, &Error{Kind: KindRequestNotSent, Err: err}
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req.SetRequestURI(c.baseURL + r.Path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	for key, value := range r.Header {
		req.Header.Set(key, value)
	}
	if payload != nil {
		req.SetBody(payload)
	}

	attached := c.attachCredential(ctx, req)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.doer.DoDeadline(req, resp, deadline)
	} else {
		err = c.doer.Do(req, resp)
	}
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	result := &Response{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
	}

	if result.StatusCode >= 200 && result.StatusCode < 300 {
		return result, nil
	}

	return result, c.failure(ctx, method, r.Path, attached, result)
}

// PostJSON sends body and decodes a 2xx response into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any, header map[string]string) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Header: header})
	if err != nil {
		return err
	}

	return decode(resp, out)
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}

	return decode(resp, out)
}

// attachCredential sets the bearer header and returns the credential it used.
func (c *Client) attachCredential(ctx context.Context, req *fasthttp.Request) string {
	if c.session == nil {
		return ""
	}

	cred, err := c.session.Credential(ctx)
	if err != nil {
		c.logger.Warn("reading credential failed, sending unauthenticated", "error", err)
		return ""
	}
	if cred != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+cred)
	}

	return cred
}

// failure maps a non-2xx response. On 401/403 the session is cleared, but only
// if it still holds the credential this request was sent with.
func (c *Client) failure(ctx context.Context, method, path, attached string, resp *Response) error {
	kind := statusKind(resp.StatusCode)

	if (kind == KindUnauthorized || kind == KindForbidden) && c.session != nil && attached != "" {
		cleared, err := c.session.ClearCredentialIf(ctx, attached)
		switch {
		case err != nil:
			c.logger.Error("clearing session failed", "error", err)
		case cleared:
			c.logger.Warn("authorization failure, session cleared", "method", method, "path", path, "status", resp.StatusCode)
		default:
			c.logger.Info("authorization failure for a replaced credential, session kept", "method", method, "path", path, "status", resp.StatusCode)
		}
	}

	return &Error{
		Kind:    kind,
		Status:  resp.StatusCode,
		Message: serverMessage(resp.Body),
	}
}

func serverMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if len(body) > 0 && sonic.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		return parsed.Message
	}

	return genericMessage
}

func decode(resp *Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}

	if err := sonic.Unmarshal(resp.Body, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: genericMessage, Err: err}
	}

	return nil
}
