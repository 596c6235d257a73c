package solana

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPC struct {
	responses map[string][]json.RawMessage
	errs      map[string][]error
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{responses: map[string][]json.RawMessage{}, errs: map[string][]error{}}
}

func (f *fakeRPC) queue(method, raw string) {
	f.responses[method] = append(f.responses[method], json.RawMessage(raw))
	f.errs[method] = append(f.errs[method], nil)
}

func (f *fakeRPC) Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
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

func TestAdapter_Height(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("getSlot", "123456789")

	a := New(rpc, 400)
	h, err := a.Height(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), h)
}

func TestAdapter_DisableHeightProcessing(t *testing.T) {
	pull := New(newFakeRPC(), 400)
	assert.False(t, pull.DisableHeightProcessing())

	graphqlDriven := NewGraphQLDriven(newFakeRPC(), 400)
	assert.True(t, graphqlDriven.DisableHeightProcessing())
}

func TestAdapter_TxsAt_NativeBalanceDiff(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("getBlock", `{"transactions":[
		{
			"transaction": {"signatures":["sig1"], "message":{"accountKeys":["acctA","acctB"]}},
			"meta": {"err": null, "preBalances":[1000,2000], "postBalances":[900,2100]}
		}
	]}`)

	a := New(rpc, 400)
	txs, err := a.TxsAt(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, txs, 1, "only the increasing balance produces a transfer")
	tx := txs[0]
	assert.Equal(t, "sig1", tx.Hash)
	assert.Equal(t, "acctB", tx.To)
	assert.Equal(t, int64(100), tx.Value.Int64())
	assert.Empty(t, tx.From, "balance-diff derivation cannot recover the sender")
}

func TestAdapter_TxsAt_FailedTransactionRejected(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("getBlock", `{"transactions":[
		{
			"transaction": {"signatures":["sig1"], "message":{"accountKeys":["acctA","acctB"]}},
			"meta": {"err": {"InstructionError": [0, "Custom"]}, "preBalances":[1000,2000], "postBalances":[900,2100]}
		}
	]}`)

	a := New(rpc, 400)
	txs, err := a.TxsAt(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestAdapter_TxsAt_TokenBalanceDiff(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("getBlock", `{"transactions":[
		{
			"transaction": {
				"signatures":["sig2"],
				"message":{
					"accountKeys":["tokenAcctFrom","tokenAcctTo"],
					"instructions":[{"program":"spl-associated-token-account","parsed":{"type":"createIdempotent","info":{"account":"tokenAcctTo"}}}]
				}
			},
			"meta": {
				"err": null,
				"preTokenBalances": [{"accountIndex":0,"mint":"MintXYZ","owner":"ownerFrom","uiTokenAmount":{"amount":"1000"}}],
				"postTokenBalances": [{"accountIndex":0,"mint":"MintXYZ","owner":"ownerFrom","uiTokenAmount":{"amount":"400"}},
				                      {"accountIndex":1,"mint":"MintXYZ","owner":"ownerTo","uiTokenAmount":{"amount":"600"}}]
			}
		}
	]}`)

	a := New(rpc, 400)
	txs, err := a.TxsAt(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, txs, 1, "only the account whose balance increased yields a transfer")
	tx := txs[0]
	assert.Equal(t, "sig2", tx.Hash)
	assert.Equal(t, "ownerTo", tx.To)
	assert.Equal(t, "MintXYZ", tx.Token)
	assert.Equal(t, int64(600), tx.Value.Int64())
}

func TestAdapter_TxsAt_TokenBalanceDiff_MissingPreBalanceWithoutCreateATASkipped(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("getBlock", `{"transactions":[
		{
			"transaction": {"signatures":["sig3"], "message":{"accountKeys":["tokenAcctFrom","tokenAcctTo"]}},
			"meta": {
				"err": null,
				"preTokenBalances": [{"accountIndex":0,"mint":"MintXYZ","owner":"ownerFrom","uiTokenAmount":{"amount":"1000"}}],
				"postTokenBalances": [{"accountIndex":0,"mint":"MintXYZ","owner":"ownerFrom","uiTokenAmount":{"amount":"400"}},
				                      {"accountIndex":1,"mint":"MintXYZ","owner":"ownerTo","uiTokenAmount":{"amount":"600"}}]
			}
		}
	]}`)

	a := New(rpc, 400)
	txs, err := a.TxsAt(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, txs, "a missing pre-balance with no create-ATA instruction can't be assumed zero")
}

func TestAdapter_TxsAt_TransferCheckedHarvestedFromInstructions(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("getBlock", `{"transactions":[
		{
			"transaction": {
				"signatures":["sig4"],
				"message":{
					"accountKeys":[],
					"instructions":[{"program":"spl-token","parsed":{"type":"transferChecked","info":{"source":"src","destination":"dst","mint":"MintXYZ","tokenAmount":{"amount":"42"}}}}]
				}
			},
			"meta": {"err": null}
		}
	]}`)

	a := New(rpc, 400)
	txs, err := a.TxsAt(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, "sig4", tx.Hash)
	assert.Equal(t, "src", tx.From)
	assert.Equal(t, "dst", tx.To)
	assert.Equal(t, "MintXYZ", tx.Token)
	assert.Equal(t, int64(42), tx.Value.Int64())
}

func TestAdapter_TxsAt_StatusErrRejected(t *testing.T) {
	rpc := newFakeRPC()
	rpc.queue("getBlock", `{"transactions":[
		{
			"transaction": {"signatures":["sig5"], "message":{"accountKeys":["acctA","acctB"]}},
			"meta": {"err": null, "status": {"Err": {"InstructionError": [0, "Custom"]}}, "preBalances":[1000,2000], "postBalances":[900,2100]}
		}
	]}`)

	a := New(rpc, 400)
	txs, err := a.TxsAt(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, txs, "a non-null status.Err rejects the transaction even when meta.err itself is null")
}

func TestAdapter_IsAccount(t *testing.T) {
	a := New(newFakeRPC(), 400)

	ok, err := a.IsAccount(context.Background(), "4Nd1mZSk4GvXWVHhf6jF7f7f7f7f7f7f7f7f7f7f7f7")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.IsAccount(context.Background(), "short")
	require.NoError(t, err)
	assert.False(t, ok)
}
