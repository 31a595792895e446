package chain

import (
	"errors"
	"strings"

	"arbcore/internal/model"
)

// Node error fragments that mean the account sequence number was refused.
// "nonce too high" is included because a gap left by a dropped transaction
// only heals by re-reading the confirmed count.
var nonceRejections = []string{
	"nonce too low",
	"nonce too high",
	"invalid nonce",
	"nonce expired",
	"expired nonce",
}

// IsNonceRejection reports whether err is a node or relay refusal of the
// transaction nonce.
func IsNonceRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, model.ErrNonceRejected) {
		return true
	}
	return IsNonceRejectionMessage(err.Error())
}

// IsNonceRejectionMessage matches a raw error string, as returned inside relay
// simulation results.
func IsNonceRejectionMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, fragment := range nonceRejections {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
