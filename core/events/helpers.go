package events

import (
	"math/big"
	"strconv"

	"horus/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatBlock(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func addressString(addr crypto.Address) string {
	if len(addr.Bytes()) == 0 {
		return ""
	}
	return addr.String()
}
