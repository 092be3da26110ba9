package data

import (
	"context"
	"testing"

	"token-service/internal/constants"
	tokenErrors "token-service/internal/errors"

	kratosErrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeader map[string][]string

func (h fakeHeader) Get(key string) string {
	if v := h[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
func (h fakeHeader) Set(key, value string)      { h[key] = []string{value} }
func (h fakeHeader) Add(key, value string)      { h[key] = append(h[key], value) }
func (h fakeHeader) Values(key string) []string { return h[key] }
func (h fakeHeader) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

type fakeTransport struct {
	header fakeHeader
}

func (t *fakeTransport) Kind() transport.Kind            { return transport.KindHTTP }
func (t *fakeTransport) Endpoint() string                { return "" }
func (t *fakeTransport) Operation() string               { return "" }
func (t *fakeTransport) RequestHeader() transport.Header { return t.header }
func (t *fakeTransport) ReplyHeader() transport.Header   { return t.header }

func serverContext(header fakeHeader) context.Context {
	return transport.NewServerContext(context.Background(), &fakeTransport{header: header})
}

func TestResolveIdentity(t *testing.T) {
	resolver := NewIdentityResolver()

	caller, err := resolver.Resolve(serverContext(fakeHeader{
		constants.HeaderIdentity: {"user-1"},
		constants.HeaderTier:     {"plus"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", caller.Identity)
	assert.Equal(t, "plus", caller.Tier)
}

func TestResolveIdentityDefaultsTier(t *testing.T) {
	resolver := NewIdentityResolver()

	caller, err := resolver.Resolve(serverContext(fakeHeader{
		constants.HeaderIdentity: {"anon-session-9"},
	}))
	require.NoError(t, err)
	assert.Equal(t, constants.TierFree, caller.Tier)
}

func TestResolveIdentityMissing(t *testing.T) {
	resolver := NewIdentityResolver()

	_, err := resolver.Resolve(serverContext(fakeHeader{}))
	require.Error(t, err)
	assert.Equal(t, tokenErrors.ReasonIdentityUnresolved, kratosErrors.Reason(err))

	_, err = resolver.Resolve(context.Background())
	require.Error(t, err)
}
