package email

import (
	"bytes"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Template keys for vendor-facing mail. Order keys are defined by the order package.
const (
	TemplateVendorApproved = "vendor_approved"
	TemplatePayoutPaid     = "payout_paid"
)

var ErrUnknownTemplate = errors.New("email: unknown template")

// OrderLine represents a line in an order for email purposes
type OrderLine struct {
	Name      string
	Quantity  int
	PriceUnit decimal.Decimal
	Subtotal  decimal.Decimal
}

type OrderMail struct {
	Reference      string
	CustomerName   string
	Lines          []OrderLine
	AmountUntaxed  decimal.Decimal
	AmountTax      decimal.Decimal
	ShippingCost   decimal.Decimal
	AmountTotal    decimal.Decimal
	TrackingNumber string
}

type VendorMail struct {
	Name string
	Code string
}

type PayoutMail struct {
	VendorName  string
	Reference   string
	Amount      decimal.Decimal
	Commissions int
	PaidAt      time.Time
}

var funcs = template.FuncMap{
	"money": formatAmount,
	"date":  func(t time.Time) string { return t.Format("2006-01-02") },
}

const layoutHead = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
`

const layoutFoot = `<p style="color: #888; font-size: 12px;">This message was sent automatically. Please do not reply.</p>
</body>
</html>`

const orderTable = `{{define "lines"}}
<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
	<thead>
		<tr style="background: #f8f9fa;">
			<th style="padding: 8px; text-align: left;">Product</th>
			<th style="padding: 8px; text-align: center;">Qty</th>
			<th style="padding: 8px; text-align: right;">Unit price</th>
			<th style="padding: 8px; text-align: right;">Subtotal</th>
		</tr>
	</thead>
	<tbody>
	{{range .Lines}}
		<tr>
			<td style="padding: 8px; border-bottom: 1px solid #eee;">{{.Name}}</td>
			<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
			<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">{{money .PriceUnit}}</td>
			<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">{{money .Subtotal}}</td>
		</tr>
	{{end}}
	</tbody>
</table>
<p style="text-align: right;">Untaxed: {{money .AmountUntaxed}}<br>Tax: {{money .AmountTax}}<br>Shipping: {{money .ShippingCost}}</p>
<p style="text-align: right; font-size: 18px; font-weight: bold;">Total: {{money .AmountTotal}}</p>
{{end}}`

type mailTemplate struct {
	subject *texttemplate.Template
	body    *template.Template
}

var templates = map[string]mailTemplate{
	"order_confirmation": build("order_confirmation",
		`Order {{.Reference}} confirmed`,
		`<h1>Thank you for your order</h1>
<p>Hello {{.CustomerName}}, your order <strong>{{.Reference}}</strong> has been confirmed.</p>
{{template "lines" .}}`),
	"order_processing": build("order_processing",
		`Order {{.Reference}} is being prepared`,
		`<h1>Your order is being prepared</h1>
<p>Hello {{.CustomerName}}, the vendor has started preparing order <strong>{{.Reference}}</strong>.</p>
{{template "lines" .}}`),
	"order_shipped": build("order_shipped",
		`Order {{.Reference}} has shipped`,
		`<h1>Your order is on its way</h1>
<p>Hello {{.CustomerName}}, order <strong>{{.Reference}}</strong> has been shipped.</p>
{{if .TrackingNumber}}<p>Tracking number: <code>{{.TrackingNumber}}</code></p>{{end}}
{{template "lines" .}}`),
	TemplateVendorApproved: build(TemplateVendorApproved,
		`Your vendor account {{.Code}} is approved`,
		`<h1>Welcome aboard</h1>
<p>Hello {{.Name}}, your vendor account <strong>{{.Code}}</strong> has been approved. You can now publish products and receive orders.</p>`),
	TemplatePayoutPaid: build(TemplatePayoutPaid,
		`Payout {{.Reference}} has been paid`,
		`<h1>Payout sent</h1>
<p>Hello {{.VendorName}}, payout <strong>{{.Reference}}</strong> covering {{.Commissions}} commission(s) was paid on {{date .PaidAt}}.</p>
<p style="font-size: 18px; font-weight: bold;">Amount: {{money .Amount}}</p>`),
}

func build(name, subject, body string) mailTemplate {
	t := template.Must(template.New(name).Funcs(funcs).Parse(orderTable))
	return mailTemplate{
		subject: texttemplate.Must(texttemplate.New(name).Parse(subject)),
		body:    template.Must(t.Parse(layoutHead + body + layoutFoot)),
	}
}

// Render executes the subject and HTML body of a template.
func Render(key string, data any) (subject, body string, err error) {
	t, ok := templates[key]
	if !ok {
		return "", "", errors.Wrap(ErrUnknownTemplate, key)
	}
	var sb, bb bytes.Buffer
	if err := t.subject.Execute(&sb, data); err != nil {
		return "", "", errors.Wrapf(err, "render %s subject", key)
	}
	if err := t.body.Execute(&bb, data); err != nil {
		return "", "", errors.Wrapf(err, "render %s body", key)
	}
	return sb.String(), bb.String(), nil
}

// Known reports whether a template is registered under key.
func Known(key string) bool {
	_, ok := templates[key]
	return ok
}

// formatAmount renders a decimal with two places and thousands separators.
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var result strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	return sign + result.String() + "." + frac
}
