package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// DonationMail is everything the donor, certificate and staff mails render.
type DonationMail struct {
	OrgName     string
	OrgPAN      string
	Org80GRegNo string
	TaxNote     string

	DonorName  string
	DonorEmail string
	DonorPAN   string
	Anonymous  bool

	OrderRef   string
	TxnID      string
	Amount     string
	Currency   string
	PaidAt     string
	Gateway    string
	Recurrence string
	Dedication string
}

var (
	receiptTmpl = template.Must(template.New("receipt").Parse(`<p>Dear {{.DonorName}},</p>
<p>Thank you for your donation of <strong>{{.Currency}} {{.Amount}}</strong> to {{.OrgName}}.</p>
<table>
<tr><td>Receipt no.</td><td>{{.OrderRef}}</td></tr>
<tr><td>Transaction id</td><td>{{.TxnID}}</td></tr>
<tr><td>Date</td><td>{{.PaidAt}}</td></tr>
{{if .Dedication}}<tr><td>Dedication</td><td>{{.Dedication}}</td></tr>{{end}}
</table>
{{if .TaxNote}}<p><em>{{.TaxNote}}</em></p>{{end}}
<p>{{.OrgName}}</p>`))

	certificateTmpl = template.Must(template.New("certificate").Parse(`<h2>Certificate of donation under section 80G</h2>
<p>{{.OrgName}} (PAN {{.OrgPAN}}{{if .Org80GRegNo}}, 80G registration {{.Org80GRegNo}}{{end}})
acknowledges receipt of <strong>{{.Currency}} {{.Amount}}</strong> from {{.DonorName}} (PAN {{.DonorPAN}})
on {{.PaidAt}}, reference {{.OrderRef}}, transaction {{.TxnID}}.</p>
{{if .TaxNote}}<p>{{.TaxNote}}</p>{{end}}`))

	adminTmpl = template.Must(template.New("admin").Parse(`<p>New donation received.</p>
<ul>
<li>Order: {{.OrderRef}}</li>
<li>Amount: {{.Currency}} {{.Amount}}</li>
<li>Donor: {{.DonorName}}{{if and .DonorEmail (not .Anonymous)}} &lt;{{.DonorEmail}}&gt;{{end}}</li>
<li>Gateway: {{.Gateway}} / {{.TxnID}}</li>
<li>Recurrence: {{.Recurrence}}</li>
<li>Paid at: {{.PaidAt}}</li>
</ul>`))
)

func render(t *template.Template, d DonationMail) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func Receipt(to string, d DonationMail) (Message, error) {
	body, err := render(receiptTmpl, d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your donation receipt %s", d.OrderRef),
		HTML:    body,
	}, nil
}

func TaxCertificate(to string, d DonationMail) (Message, error) {
	body, err := render(certificateTmpl, d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("80G certificate for donation %s", d.OrderRef),
		HTML:    body,
	}, nil
}

func AdminNotice(to []string, d DonationMail) (Message, error) {
	body, err := render(adminTmpl, d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Donation received: %s %s (%s)", d.Currency, d.Amount, d.OrderRef),
		HTML:    body,
	}, nil
}
