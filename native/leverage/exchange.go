package leverage

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var errInvalidIndex = errors.New("leverage engine: exchange index must be positive")

// IndexAdapter converts with a wrapper index expressed in DecimalScale units:
// elastic = static * index / 1e9 and static = elastic * 1e9 / index.
type IndexAdapter struct {
	index *uint256.Int
}

var indexScale = uint256.NewInt(DecimalScale)

// NewIndexAdapter builds an adapter for the given index.
func NewIndexAdapter(index *big.Int) (*IndexAdapter, error) {
	a := &IndexAdapter{}
	if err := a.SetIndex(index); err != nil {
		return nil, err
	}
	return a, nil
}

// SetIndex moves the index, which is how a rebase shows up to the ledger.
func (a *IndexAdapter) SetIndex(index *big.Int) error {
	if !positive(index) {
		return errInvalidIndex
	}
	converted, overflow := uint256.FromBig(index)
	if overflow {
		return errInvalidIndex
	}
	a.index = converted
	return nil
}

// Index returns the current index.
func (a *IndexAdapter) Index() *big.Int {
	if a == nil || a.index == nil {
		return big.NewInt(0)
	}
	return a.index.ToBig()
}

// StaticToElastic implements ExchangeRateAdapter.
func (a *IndexAdapter) StaticToElastic(amount *big.Int) *big.Int {
	return a.convert(amount, a.index, indexScale)
}

// ElasticToStatic implements ExchangeRateAdapter.
func (a *IndexAdapter) ElasticToStatic(amount *big.Int) *big.Int {
	return a.convert(amount, indexScale, a.index)
}

// ElasticToStaticCeil implements ExchangeRateAdapter.
func (a *IndexAdapter) ElasticToStaticCeil(amount *big.Int) *big.Int {
	if a == nil || a.index == nil || !positive(amount) {
		return big.NewInt(0)
	}
	x, overflow := uint256.FromBig(amount)
	if !overflow {
		if out, over := new(uint256.Int).MulDivOverflow(x, indexScale, a.index); !over {
			if !new(uint256.Int).MulMod(x, indexScale, a.index).IsZero() {
				out.AddUint64(out, 1)
			}
			return out.ToBig()
		}
	}
	return mulDivUp(amount, indexScale.ToBig(), a.index.ToBig())
}

func (a *IndexAdapter) convert(amount *big.Int, mul, div *uint256.Int) *big.Int {
	if a == nil || a.index == nil || !positive(amount) {
		return big.NewInt(0)
	}
	x, overflow := uint256.FromBig(amount)
	if !overflow {
		if out, over := new(uint256.Int).MulDivOverflow(x, mul, div); !over {
			return out.ToBig()
		}
	}
	// Amounts beyond 256 bits are not expected on chain but stay exact.
	return mulDiv(amount, mul.ToBig(), div.ToBig())
}
