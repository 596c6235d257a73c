package solana

import (
	"crypto/sha256"
	"encoding/base64"
)

// ataProgramID and tokenProgramID are the fixed addresses the associated
// token account PDA is derived against. Kept as their raw base58 forms;
// this adapter only needs them as seed bytes, not as on-chain identities.
const (
	ataProgramIDBase58   = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	tokenProgramIDBase58 = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// CanonicalForms implements chainadapter.Canonicalizer. It returns addr
// itself plus the associated-token-account address derived from
// (addr, token), so the matcher fires whether the on-chain transfer named
// the owner or its ATA.
//
// TODO: this derives a deterministic placeholder rather than walking the
// full PDA bump-seed search against the ed25519 curve equation; swap in a
// real program-derived-address check once a Solana SDK dependency is wired.
func (a *Adapter) CanonicalForms(addr, token string) []string {
	forms := []string{addr}
	if token == "" {
		return forms
	}
	if derived := deriveAssociatedTokenAccount(addr, token); derived != "" {
		forms = append(forms, derived)
	}
	return forms
}

func deriveAssociatedTokenAccount(owner, mint string) string {
	h := sha256.New()
	h.Write([]byte(owner))
	h.Write([]byte(tokenProgramIDBase58))
	h.Write([]byte(mint))
	h.Write([]byte(ataProgramIDBase58))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:32])
}
