package email

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleOrder() OrderMail {
	return OrderMail{
		Reference:    "ORD/00042",
		CustomerName: "Jane",
		Lines: []OrderLine{
			{Name: "Mug", Quantity: 2, PriceUnit: dec("12.5"), Subtotal: dec("25")},
		},
		AmountUntaxed: dec("25"),
		AmountTax:     dec("2.5"),
		ShippingCost:  dec("5"),
		AmountTotal:   dec("1032.5"),
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"12.5", "12.50"},
		{"999.999", "1,000.00"},
		{"1234567.8", "1,234,567.80"},
		{"-1500", "-1,500.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAmount(dec(tt.in)))
		})
	}
}

func TestRender_OrderTemplates(t *testing.T) {
	for _, key := range []string{"order_confirmation", "order_processing", "order_shipped"} {
		t.Run(key, func(t *testing.T) {
			subject, body, err := Render(key, sampleOrder())
			require.NoError(t, err)
			assert.Contains(t, subject, "ORD/00042")
			assert.Contains(t, body, "Mug")
			assert.Contains(t, body, "1,032.50")
		})
	}
}

func TestRender_ShippedIncludesTracking(t *testing.T) {
	data := sampleOrder()
	data.TrackingNumber = "TRK-1"

	_, body, err := Render("order_shipped", data)
	require.NoError(t, err)
	assert.Contains(t, body, "TRK-1")
}

func TestRender_EscapesHTML(t *testing.T) {
	data := sampleOrder()
	data.CustomerName = "<script>x</script>"

	_, body, err := Render("order_confirmation", data)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRender_VendorTemplates(t *testing.T) {
	subject, body, err := Render(TemplateVendorApproved, VendorMail{Name: "Acme", Code: "VEN/00001"})
	require.NoError(t, err)
	assert.Equal(t, "Your vendor account VEN/00001 is approved", subject)
	assert.Contains(t, body, "Acme")

	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, body, err = Render(TemplatePayoutPaid, PayoutMail{VendorName: "Acme", Reference: "PAY/00003", Amount: dec("180"), Commissions: 1, PaidAt: paidAt})
	require.NoError(t, err)
	assert.Contains(t, body, "180.00")
	assert.Contains(t, body, "2026-03-01")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, _, err := Render("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	assert.False(t, Known("nope"))
	assert.True(t, Known("order_shipped"))
}

type recordingSender struct {
	to, subject, body string
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return nil
}

func TestDeliver(t *testing.T) {
	s := &recordingSender{}
	require.NoError(t, Deliver(s, "jane@example.com", "order_confirmation", sampleOrder()))
	assert.Equal(t, "jane@example.com", s.to)
	assert.Equal(t, "Order ORD/00042 confirmed", s.subject)
}

func TestService_SendRejectsEmptyRecipient(t *testing.T) {
	err := NewService("localhost", "1025", "noreply@example.com").Send("", "s", "b")
	assert.Error(t, err)
}
