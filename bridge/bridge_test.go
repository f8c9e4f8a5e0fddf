package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinexus/polycall-sub011/errs"
	"github.com/obinexus/polycall-sub011/fftype"
	"github.com/obinexus/polycall-sub011/registry"
	"github.com/obinexus/polycall-sub011/wire"
)

func mustEncode(t *testing.T, tag wire.TypeTag, v any) []byte {
	t.Helper()
	data, err := fftype.Encode(tag, v)
	require.NoError(t, err)
	return data
}

func TestDispatchInboundConvertsAndInvokes(t *testing.T) {
	reg := registry.New(nil)
	id, err := reg.Register(&registry.Descriptor{Name: "add"})
	require.NoError(t, err)

	funcs := NewFunctionTable()
	require.NoError(t, funcs.Register(&FunctionEntry{
		Name: "add",
		Signature: Signature{
			ParamTags: []wire.TypeTag{wire.TagI32, wire.TagI32},
			ReturnTag: wire.TagI32,
		},
		Fn: func(ctx context.Context, args []any) (any, error) {
			a := args[0].(int32)
			b := args[1].(int32)
			return a + b, nil
		},
	}))

	b := New(reg, funcs, nil, nil)

	cmd := &wire.Command{
		CommandID: id,
		Params: []wire.Param{
			{ParamID: 0, Tag: wire.TagI32, Bytes: mustEncode(t, wire.TagI32, int64(2))},
			{ParamID: 1, Tag: wire.TagI32, Bytes: mustEncode(t, wire.TagI32, int64(3))},
		},
	}

	resp, err := b.DispatchInbound(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, resp.Status)
}

func TestDispatchInboundUnknownCommandID(t *testing.T) {
	reg := registry.New(nil)
	funcs := NewFunctionTable()
	b := New(reg, funcs, nil, nil)

	_, err := b.DispatchInbound(context.Background(), &wire.Command{CommandID: 999})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestDispatchInboundUnregisteredFunction(t *testing.T) {
	reg := registry.New(nil)
	id, err := reg.Register(&registry.Descriptor{Name: "ghost"})
	require.NoError(t, err)
	funcs := NewFunctionTable()
	b := New(reg, funcs, nil, nil)

	_, err = b.DispatchInbound(context.Background(), &wire.Command{CommandID: id})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestRoutingTablePicksHighestPriority(t *testing.T) {
	rt := NewRoutingTable()
	rt.Add(Route{Glob: "user.*", Endpoint: "low", Priority: 1})
	rt.Add(Route{Glob: "user.*", Endpoint: "high", Priority: 10})

	endpoint, ok := rt.Resolve("user.create")
	require.True(t, ok)
	assert.Equal(t, "high", endpoint)
}

func TestRoutingTableTieBreaksByInsertionOrder(t *testing.T) {
	rt := NewRoutingTable()
	rt.Add(Route{Glob: "*", Endpoint: "first", Priority: 5})
	rt.Add(Route{Glob: "*", Endpoint: "second", Priority: 5})

	endpoint, ok := rt.Resolve("anything")
	require.True(t, ok)
	assert.Equal(t, "first", endpoint)
}

func TestRoutingTableNoMatch(t *testing.T) {
	rt := NewRoutingTable()
	rt.Add(Route{Glob: "user.*", Endpoint: "x", Priority: 1})

	_, ok := rt.Resolve("order.create")
	assert.False(t, ok)
}

type fakeTransport struct {
	sent chan struct {
		endpoint string
		seq      uint32
		cmd      *wire.Command
	}
}

func (f *fakeTransport) SendCommand(ctx context.Context, endpoint string, seq uint32, cmd *wire.Command) error {
	f.sent <- struct {
		endpoint string
		seq      uint32
		cmd      *wire.Command
	}{endpoint, seq, cmd}
	return nil
}

func TestCallOutboundResolvesRouteAndAwaitsResponse(t *testing.T) {
	reg := registry.New(nil)
	funcs := NewFunctionTable()
	transport := &fakeTransport{sent: make(chan struct {
		endpoint string
		seq      uint32
		cmd      *wire.Command
	}, 1)}
	b := New(reg, funcs, nil, transport)
	b.Routes().Add(Route{Glob: "echo", Endpoint: "peer-1", Priority: 1})

	go func() {
		sent := <-transport.sent
		b.Pending().Resolve(sent.seq, &wire.Response{Status: wire.StatusSuccess, Data: []byte("ok")})
	}()

	resp, err := b.CallOutbound(context.Background(), "echo", []any{int64(1)}, []wire.TypeTag{wire.TagI32}, "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, resp.Status)
}

func TestCallOutboundNoRouteIsNotFound(t *testing.T) {
	reg := registry.New(nil)
	funcs := NewFunctionTable()
	b := New(reg, funcs, nil, &fakeTransport{sent: make(chan struct {
		endpoint string
		seq      uint32
		cmd      *wire.Command
	}, 1)})

	_, err := b.CallOutbound(context.Background(), "missing", nil, nil, "", time.Second)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestCallOutboundTimesOutAndRemovesWaiter(t *testing.T) {
	reg := registry.New(nil)
	funcs := NewFunctionTable()
	b := New(reg, funcs, nil, &fakeTransport{sent: make(chan struct {
		endpoint string
		seq      uint32
		cmd      *wire.Command
	}, 1)})
	b.Routes().Add(Route{Glob: "slow", Endpoint: "peer-1", Priority: 1})

	_, err := b.CallOutbound(context.Background(), "slow", nil, nil, "", 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout))
}
