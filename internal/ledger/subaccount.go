package ledger

import (
	"crypto/sha256"

	"beacon/internal/common"
)

func subaccountFor(token common.TokenID, owner string) SubAccount {
	h := sha256.New()
	h.Write(token[:])
	h.Write([]byte{0}) // separator: owner strings can't collide across the token boundary
	h.Write([]byte(owner))
	var sub SubAccount
	copy(sub[:], h.Sum(nil))
	return sub
}
