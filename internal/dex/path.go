package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addrSize = common.AddressLength
	feeSize  = 3
)

// EncodePath packs a multi-hop route as token|fee|token|fee|token, the layout
// router exactInput calls expect.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("path needs at least two tokens, got %d", len(tokens))
	}
	if len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("path has %d tokens but %d fees", len(tokens), len(fees))
	}

	out := make([]byte, 0, len(tokens)*addrSize+len(fees)*feeSize)
	for i, token := range tokens {
		out = append(out, token.Bytes()...)
		if i == len(fees) {
			break
		}
		fee := fees[i]
		if fee >= 1<<24 {
			return nil, fmt.Errorf("fee %d overflows uint24", fee)
		}
		out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	return out, nil
}

// DecodePath is the inverse of EncodePath.
func DecodePath(path []byte) ([]common.Address, []uint32, error) {
	if len(path) < 2*addrSize+feeSize || (len(path)-addrSize)%(addrSize+feeSize) != 0 {
		return nil, nil, fmt.Errorf("invalid path length %d", len(path))
	}

	hops := (len(path) - addrSize) / (addrSize + feeSize)
	tokens := make([]common.Address, 0, hops+1)
	fees := make([]uint32, 0, hops)

	offset := 0
	for i := 0; i < hops; i++ {
		tokens = append(tokens, common.BytesToAddress(path[offset:offset+addrSize]))
		offset += addrSize
		fees = append(fees, uint32(path[offset])<<16|uint32(path[offset+1])<<8|uint32(path[offset+2]))
		offset += feeSize
	}
	tokens = append(tokens, common.BytesToAddress(path[offset:offset+addrSize]))
	return tokens, fees, nil
}
