package normalizedtx

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTx_HashKey(t *testing.T) {
	t.Run("defaults to hash when unset", func(t *testing.T) {
		tx := Tx{}
		assert.Equal(t, "hash", tx.HashKey())
	})

	t.Run("honors an explicit HashKeyName", func(t *testing.T) {
		tx := Tx{HashKeyName: "txid"}
		assert.Equal(t, "txid", tx.HashKey())
	})
}

func TestTx_IsZero(t *testing.T) {
	assert.True(t, Tx{}.IsZero())
	assert.True(t, Tx{Value: big.NewInt(0)}.IsZero())
	assert.False(t, Tx{Value: big.NewInt(1)}.IsZero())
}

func TestTx_IsTokenTransfer(t *testing.T) {
	assert.False(t, Tx{}.IsTokenTransfer())
	assert.True(t, Tx{Token: "0xTokenContract"}.IsTokenTransfer())
}

func TestTx_Validate(t *testing.T) {
	t.Run("rejects negative value", func(t *testing.T) {
		tx := Tx{To: "0xabc", Value: big.NewInt(-1)}
		assert.ErrorIs(t, tx.Validate(), ErrNegativeValue)
	})

	t.Run("requires To", func(t *testing.T) {
		tx := Tx{Value: big.NewInt(1)}
		assert.ErrorIs(t, tx.Validate(), ErrMissingTo)
	})

	t.Run("requires From on token transfers", func(t *testing.T) {
		tx := Tx{To: "0xabc", Token: "0xTokenContract", Value: big.NewInt(1)}
		assert.ErrorIs(t, tx.Validate(), ErrMissingFrom)
	})

	t.Run("accepts a well-formed native transfer", func(t *testing.T) {
		tx := Tx{To: "0xabc", From: "0xdef", Value: big.NewInt(1)}
		assert.NoError(t, tx.Validate())
	})

	t.Run("accepts a well-formed token transfer", func(t *testing.T) {
		tx := Tx{To: "0xabc", From: "0xdef", Token: "0xTokenContract", Value: big.NewInt(1)}
		assert.NoError(t, tx.Validate())
	})
}
