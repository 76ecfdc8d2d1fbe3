package pipeline

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"francoggm/travelpay/internal/app/credential"
	"francoggm/travelpay/internal/app/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type recordedRequest struct {
	Method        string
	URI           string
	Authorization string
	Body          string
}

// fakeDoer records every request and answers with a fixed status and body.
type fakeDoer struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
	err      error

	// onRequest runs before the response is written.
	onRequest func()
}

func (d *fakeDoer) Do(req *fasthttp.Request, resp *fasthttp.Response) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, recordedRequest{
		Method:        string(req.Header.Method()),
		URI:           req.URI().String(),
		Authorization: string(req.Header.Peek(fasthttp.HeaderAuthorization)),
		Body:          string(req.Body()),
	})
	if d.onRequest != nil {
		d.onRequest()
	}
	if d.err != nil {
		return d.err
	}

	resp.SetStatusCode(d.status)
	resp.SetBodyString(d.body)
	return nil
}

func (d *fakeDoer) DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, _ time.Time) error {
	return d.Do(req, resp)
}

func (d *fakeDoer) recorded() []recordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]recordedRequest(nil), d.requests...)
}

type countingStore struct {
	*credential.MemoryStore
	mu     sync.Mutex
	clears int
}

func (s *countingStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.clears++
	s.mu.Unlock()

	return s.MemoryStore.Clear(ctx)
}

type unencodable struct{}

func (unencodable) MarshalJSON() ([]byte, error) {
	return nil, errors.New("cannot encode")
}

func validToken(t *testing.T) string {
	t.Helper()
	return tokenFor(t, "user-1")
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	return raw
}

func newSession(t *testing.T, withCredential bool) (*session.Manager, *countingStore, string) {
	t.Helper()

	store := &countingStore{MemoryStore: credential.NewMemoryStore()}
	manager := session.NewManager(store)

	var raw string
	if withCredential {
		raw = validToken(t)
		require.NoError(t, manager.SetCredential(context.Background(), raw))
	}

	return manager, store, raw
}

func TestDo_AttachesBearerCredential(t *testing.T) {
	manager, _, raw := newSession(t, true)
	doer := &fakeDoer{status: fasthttp.StatusOK, body: `{"ok":true}`}
	client := NewClient("http://backend/api", doer, manager, nil)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "/flights", &out))
	assert.True(t, out.OK)

	reqs := doer.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+raw, reqs[0].Authorization)
	assert.Equal(t, "http://backend/api/flights", reqs[0].URI)
}

func TestDo_NoCredentialStillSends(t *testing.T) {
	manager, _, _ := newSession(t, false)
	doer := &fakeDoer{status: fasthttp.StatusOK}
	client := NewClient("http://backend", doer, manager, nil)

	_, err := client.Do(context.Background(), Request{Path: "/hotels"})
	require.NoError(t, err)

	reqs := doer.recorded()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
}

func TestDo_AuthorizationFailureClearsSessionOnce(t *testing.T) {
	for _, status := range []int{fasthttp.StatusUnauthorized, fasthttp.StatusForbidden} {
		t.Run(fasthttp.StatusMessage(status), func(t *testing.T) {
			manager, store, _ := newSession(t, true)
			doer := &fakeDoer{status: status, body: `{"message":"account blocked"}`}
			client := NewClient("http://backend", doer, manager, nil)
			ctx := context.Background()

			require.True(t, manager.IsAuthenticated(ctx))

			_, err := client.Do(ctx, Request{Path: "/profile"})
			require.Error(t, err)

			var pErr *Error
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, status, pErr.Status)
			assert.Equal(t, "account blocked", pErr.Message)

			assert.False(t, manager.IsAuthenticated(ctx))
			assert.Equal(t, 1, store.clears)

			_, err = client.Do(ctx, Request{Path: "/profile"})
			require.Error(t, err)
			assert.Empty(t, doer.recorded()[1].Authorization, "next call goes out without a credential")
		})
	}
}

func TestDo_AuthorizationFailureKeepsReplacedCredential(t *testing.T) {
	manager, store, raw := newSession(t, true)
	ctx := context.Background()
	fresh := tokenFor(t, "user-2")

	// The user signs in again while the request with the old credential is
	// still on the wire.
	doer := &fakeDoer{status: fasthttp.StatusUnauthorized, onRequest: func() {
		require.NoError(t, manager.SetCredential(ctx, fresh))
	}}
	client := NewClient("http://backend", doer, manager, nil)

	_, err := client.Do(ctx, Request{Path: "/profile"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Bearer "+raw, doer.recorded()[0].Authorization)

	current, err := manager.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, current)
	assert.Zero(t, store.clears)
}

func TestDo_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		doer     *fakeDoer
		sentinel error
		message  string
	}{
		{name: "unauthorized", doer: &fakeDoer{status: 401}, sentinel: ErrUnauthorized, message: genericMessage},
		{name: "forbidden", doer: &fakeDoer{status: 403}, sentinel: ErrForbidden, message: genericMessage},
		{name: "server message", doer: &fakeDoer{status: 422, body: `{"message":"Ticket already sold"}`}, sentinel: ErrServer, message: "Ticket already sold"},
		{name: "server no body", doer: &fakeDoer{status: 500}, sentinel: ErrServer, message: genericMessage},
		{name: "network", doer: &fakeDoer{err: errors.New("dial tcp: connection refused")}, sentinel: ErrNetworkUnavailable, message: genericMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _, _ := newSession(t, false)
			client := NewClient("http://backend", tt.doer, manager, nil)

			_, err := client.Do(context.Background(), Request{Path: "/x"})
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.message, MessageOf(err))
		})
	}
}

func TestDo_NetworkErrorKeepsSession(t *testing.T) {
	manager, store, _ := newSession(t, true)
	client := NewClient("http://backend", &fakeDoer{err: fasthttp.ErrConnectionClosed}, manager, nil)

	_, err := client.Do(context.Background(), Request{Path: "/x"})
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.True(t, manager.IsAuthenticated(context.Background()))
	assert.Zero(t, store.clears)
}

func TestDo_RequestNotSent(t *testing.T) {
	manager, _, _ := newSession(t, false)
	doer := &fakeDoer{status: 200}
	client := NewClient("http://backend", doer, manager, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, Request{Path: "/x"})
	assert.ErrorIs(t, err, ErrRequestNotSent)

	_, err = client.Do(context.Background(), Request{Method: "POST", Path: "/x", Body: unencodable{}})
	assert.ErrorIs(t, err, ErrRequestNotSent)

	assert.Empty(t, doer.recorded())
}

func TestDo_Timeout(t *testing.T) {
	manager, _, _ := newSession(t, false)
	client := NewClient("http://backend", &fakeDoer{err: fasthttp.ErrTimeout}, manager, nil)

	_, err := client.Do(context.Background(), Request{Path: "/x"})
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestClient_OverInMemoryServer(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()
	t.Cleanup(func() { ln.Close() })

	var gotAuth, gotBody string
	server := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			gotAuth = string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
			gotBody = string(ctx.PostBody())

			ctx.SetStatusCode(fasthttp.StatusCreated)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"id":7}`)
		},
	}
	go server.Serve(ln)

	manager, _, raw := newSession(t, true)
	client := NewClient("http://backend", &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}, manager, nil)

	var out struct {
		ID int `json:"id"`
	}
	err := client.PostJSON(context.Background(), "/orders", map[string]int{"qty": 2}, &out, map[string]string{"Idempotency-Key": "k1"})
	require.NoError(t, err)

	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "Bearer "+raw, gotAuth)
	assert.JSONEq(t, `{"qty":2}`, gotBody)
}
