package order

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/domainerr"
)

var hundred = decimal.NewFromInt(100)

var (
	ErrMissingProduct  = errors.Wrap(domainerr.ErrValidation, "order line must reference a product")
	ErrInvalidQuantity = errors.Wrap(domainerr.ErrValidation, "line quantity must not be negative")
	ErrInvalidPrice    = errors.Wrap(domainerr.ErrValidation, "unit price must not be negative")
	ErrInvalidDiscount = errors.Wrap(domainerr.ErrValidation, "discount must be between 0 and 100")
	ErrInvalidTaxRate  = errors.Wrap(domainerr.ErrValidation, "tax rate must be between 0 and 100")
)

// Line is an order line. Subtotal and TaxAmount are derived; call Recompute
// after changing any input.
type Line struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	PriceUnit   decimal.Decimal `json:"price_unit"`
	Discount    decimal.Decimal `json:"discount"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// Subtotal returns price × (1 − discount/100) × quantity.
func Subtotal(price, discount decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(hundred.Sub(discount)).Shift(-2).Mul(decimal.NewFromInt(int64(quantity)))
}

func (l *Line) Validate() error {
	switch {
	case l.ProductID == "":
		return ErrMissingProduct
	case l.Quantity < 0:
		return errors.Wrapf(ErrInvalidQuantity, "product %s quantity %d", l.ProductID, l.Quantity)
	case l.PriceUnit.IsNegative():
		return ErrInvalidPrice
	case !percentage(l.Discount):
		return errors.Wrapf(ErrInvalidDiscount, "got %s", l.Discount)
	case !percentage(l.TaxRate):
		return errors.Wrapf(ErrInvalidTaxRate, "got %s", l.TaxRate)
	}
	return nil
}

func (l *Line) Recompute() {
	l.Subtotal = Subtotal(l.PriceUnit, l.Discount, l.Quantity)
	l.TaxAmount = l.Subtotal.Mul(l.TaxRate).Shift(-2)
}

func percentage(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}
