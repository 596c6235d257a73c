package evm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPC is a scripted jsonrpc.Client: each call consumes the next queued
// response for its method, in order, so tests can assert exactly which
// requests an adapter method issues.
type fakeRPC struct {
	responses map[string][]json.RawMessage
	errs      map[string][]error
	calls     []call
}

type call struct {
	method string
	params []any
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{responses: map[string][]json.RawMessage{}, errs: map[string][]error{}}
}

func (f *fakeRPC) queue(method string, raw string) {
	f.responses[method] = append(f.responses[method], json.RawMessage(raw))
	f.errs[method] = append(f.errs[method], nil)
}

func (f *fakeRPC) queueErr(method string, err error) {
	f.responses[method] = append(f.responses[method], nil)
	f.errs[method] = append(f.errs[method], err)
}

func (f *fakeRPC) Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	f.calls = append(f.calls, call{method: method, params: params})
	queue := f.responses[method]
	if len(queue) == 0 {
		return nil, errors.New("fakeRPC: no response queued for " + method)
	}
	raw := queue[0]
	err := f.errs[method][0]
	f.responses[method] = queue[1:]
	f.errs[method] = f.errs[method][1:]
	return raw, err
}

func TestBase_Height(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("eth_blockNumber", `"0x7a"`)

	b := NewBase("ethereum", rpc, 3000)
	h, err := b.Height(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7a), h)
}

func TestBase_Height_PropagatesTransportError(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queueErr("eth_blockNumber", errors.New("connection refused"))

	b := NewBase("ethereum", rpc, 3000)
	_, err := b.Height(context.Background())
	assert.Error(t, err)
}

func TestBase_IsAccount(t *testing.T) {
	t.Run("no code means it's an account", func(t *testing.T) {
		rpc := newFakeRPC()
		rpc.queue("eth_getCode", `"0x"`)

		b := NewBase("ethereum", rpc, 3000)
		ok, err := b.IsAccount(context.Background(), "0x1111111111111111111111111111111111111111")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("deployed code means it's a contract", func(t *testing.T) {
		rpc := newFakeRPC()
		rpc.queue("eth_getCode", `"0x6080604052"`)

		b := NewBase("ethereum", rpc, 3000)
		ok, err := b.IsAccount(context.Background(), "0x2222222222222222222222222222222222222222")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed address is rejected before any RPC call", func(t *testing.T) {
		rpc := newFakeRPC()
		b := NewBase("ethereum", rpc, 3000)

		ok, err := b.IsAccount(context.Background(), "not-an-address")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, rpc.calls)
	})
}

func TestBase_TxsAt_NativeTransfer(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("eth_getBlockByNumber", `{"transactions":[
		{"hash":"0xHASH1","from":"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","to":"0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB","value":"0x2540be400"},
		{"hash":"0xHASH2","from":"0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC","to":"","value":"0x1"},
		{"hash":"0xHASH3","from":"0xDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD","to":"0xEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEE","value":"0x0"}
	]}`)
	rpc.queue("eth_getLogs", `[]`)

	b := NewBase("ethereum", rpc, 3000)
	txs, err := b.TxsAt(context.Background(), 100)
	require.NoError(t, err)

	require.Len(t, txs, 1, "missing-to and zero-value txs must be dropped")
	assert.Equal(t, "0xHASH1", txs[0].Hash)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txs[0].From)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", txs[0].To)
	assert.Equal(t, uint64(100), txs[0].BlockNumber)
	assert.Empty(t, txs[0].Token)
}

func TestBase_TxsAt_ERC20Transfer(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("eth_getBlockByNumber", `{"transactions":[]}`)
	rpc.queue("eth_getLogs", `[
		{"address":"0xTOKEN0000000000000000000000000000000000",
		 "topics":["`+transferEventTopic+`",
		   "0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		   "0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"],
		 "data":"0x00000000000000000000000000000000000000000000000000000005f5e100",
		 "transactionHash":"0xTOKENTXHASH"}
	]`)

	b := NewBase("ethereum", rpc, 3000)
	txs, err := b.TxsAt(context.Background(), 200)
	require.NoError(t, err)

	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, "0xTOKENTXHASH", tx.Hash)
	assert.Equal(t, "0x"+"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", tx.From)
	assert.Equal(t, "0x"+"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", tx.To)
	assert.Equal(t, "0xtoken0000000000000000000000000000000000", tx.Token)
	assert.Equal(t, uint64(200), tx.BlockNumber)
}

func TestBase_TxsAt_LogsFetchFailureFallsBackToNativeOnly(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("eth_getBlockByNumber", `{"transactions":[
		{"hash":"0xHASH1","from":"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","to":"0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB","value":"0x1"}
	]}`)
	rpc.queueErr("eth_getLogs", errors.New("rate limited"))

	b := NewBase("ethereum", rpc, 3000)
	txs, err := b.TxsAt(context.Background(), 300)
	require.NoError(t, err, "a logs failure must not fail the whole call")
	require.Len(t, txs, 1)
	assert.Equal(t, "0xHASH1", txs[0].Hash)
}

func TestRpcLog_Normalize(t *testing.T) {
	t.Run("rejects a log with the wrong topic count", func(t *testing.T) {
		l := rpcLog{Topics: []string{transferEventTopic, "0xonly-one-indexed-topic"}}
		_, ok := l.normalize(1)
		assert.False(t, ok)
	})

	t.Run("rejects a log whose topic0 isn't the Transfer signature", func(t *testing.T) {
		l := rpcLog{Topics: []string{"0xdeadbeef", "0xfrom", "0xto"}}
		_, ok := l.normalize(1)
		assert.False(t, ok)
	})

	t.Run("rejects zero value", func(t *testing.T) {
		l := rpcLog{
			Topics: []string{transferEventTopic,
				"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
			Data: "0x0",
		}
		_, ok := l.normalize(1)
		assert.False(t, ok)
	})
}

func TestTopicToAddress(t *testing.T) {
	t.Run("truncates a left-padded 32-byte topic to a 20-byte address", func(t *testing.T) {
		got := topicToAddress("0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
		assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", got)
	})

	t.Run("rejects a topic shorter than an address", func(t *testing.T) {
		assert.Empty(t, topicToAddress("0x1234"))
	})
}

func TestParseHexUint(t *testing.T) {
	v, err := parseHexUint("0x1a")
	require.NoError(t, err)
	assert.Equal(t, uint64(26), v)

	_, err = parseHexUint("not-hex")
	assert.Error(t, err)
}
