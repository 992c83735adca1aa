package commission

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/domainerr"
)

// Type selects how the platform share of a sale is computed.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

var (
	ErrInvalidPolicyType = errors.Wrap(domainerr.ErrValidation, "commission type must be percentage or fixed")
	ErrInvalidRate       = errors.Wrap(domainerr.ErrValidation, "commission rate must be between 0 and 100")
	ErrInvalidFixed      = errors.Wrap(domainerr.ErrValidation, "fixed commission must not be negative")
)

var defaultRate = decimal.NewFromInt(10)

// Policy is a vendor's commission terms.
type Policy struct {
	Type  Type            `json:"type"`
	Rate  decimal.Decimal `json:"rate"`
	Fixed decimal.Decimal `json:"fixed"`
}

// DefaultPolicy is a 10% commission.
func DefaultPolicy() Policy {
	return Policy{Type: TypePercentage, Rate: defaultRate}
}

func (p Policy) Validate() error {
	switch p.Type {
	case TypePercentage:
		if p.Rate.IsNegative() || p.Rate.GreaterThan(decimal.NewFromInt(100)) {
			return errors.Wrapf(ErrInvalidRate, "got %s", p.Rate)
		}
	case TypeFixed:
		if p.Fixed.IsNegative() {
			return errors.Wrapf(ErrInvalidFixed, "got %s", p.Fixed)
		}
	default:
		return errors.Wrapf(ErrInvalidPolicyType, "got %q", p.Type)
	}
	return nil
}

// Split is the division of an order amount between platform and vendor.
// Commission + VendorAmount always equals OrderAmount.
type Split struct {
	OrderAmount  decimal.Decimal `json:"order_amount"`
	Commission   decimal.Decimal `json:"commission_amount"`
	VendorAmount decimal.Decimal `json:"vendor_amount"`
}

// Compute splits orderAmount according to the policy.
func Compute(orderAmount decimal.Decimal, p Policy) Split {
	var commission decimal.Decimal
	switch p.Type {
	case TypePercentage:
		commission = orderAmount.Mul(p.Rate).Shift(-2)
	case TypeFixed:
		commission = p.Fixed
	}
	return Split{
		OrderAmount:  orderAmount,
		Commission:   commission,
		VendorAmount: orderAmount.Sub(commission),
	}
}
