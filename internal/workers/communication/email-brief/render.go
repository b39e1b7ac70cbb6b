package emailbrief

import (
	htmltemplate "html/template"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"subscription-intake/internal/models"
)

var printer = message.NewPrinter(language.English)

type view struct {
	Name     string
	Brief    *models.Brief
	Items    []models.LineItem
	Currency string
}

var funcs = template.FuncMap{
	"deref": func(v *float64) float64 { return *v },
	"money": func(v float64, currency string) string {
		if currency == "" || currency == models.DefaultCurrency {
			return printer.Sprintf("$%d", int64(v+0.5))
		}
		return printer.Sprintf("%s %d", currency, int64(v+0.5))
	},
	"inc": func(i int) int { return i + 1 },
}

const textBody = `Hi{{if .Name}} {{.Name}}{{end}},

Here is the negotiation brief for your subscriptions.

{{.Brief.Summary}}
{{if .Brief.TotalAnnual}}
Total annual spend: {{money .Brief.TotalAnnual .Currency}}{{end}}{{if .Brief.PotentialSaves}}
Potential savings: {{money .Brief.PotentialSaves .Currency}}{{end}}
{{range .Brief.Items}}
{{.Tool}}{{if .BenchmarkStatus}} ({{.BenchmarkStatus}} benchmark){{end}}
{{.Assessment}}{{if .TargetPrice}}
Target: {{money (deref .TargetPrice) $.Currency}}/yr{{end}}{{range .Leverage}}
- {{.}}{{end}}
{{end}}{{if .Brief.NextSteps}}
Next steps:{{range $i, $s := .Brief.NextSteps}}
{{inc $i}}. {{$s}}{{end}}
{{end}}`

const htmlBody = `<p>Hi{{if .Name}} {{.Name}}{{end}},</p>
<p>Here is the negotiation brief for your subscriptions.</p>
<p>{{.Brief.Summary}}</p>
{{if .Brief.TotalAnnual}}<p><strong>Total annual spend:</strong> {{money .Brief.TotalAnnual .Currency}}</p>{{end}}
{{if .Brief.PotentialSaves}}<p><strong>Potential savings:</strong> {{money .Brief.PotentialSaves .Currency}}</p>{{end}}
{{range .Brief.Items}}<h3>{{.Tool}}</h3>
<p>{{.Assessment}}</p>
{{if .TargetPrice}}<p>Target: {{money (deref .TargetPrice) $.Currency}}/yr</p>{{end}}
{{if .Leverage}}<ul>{{range .Leverage}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{end}}{{if .Brief.NextSteps}}<h3>Next steps</h3>
<ol>{{range .Brief.NextSteps}}<li>{{.}}</li>{{end}}</ol>{{end}}`

var (
	textTmpl = template.Must(template.New("text").Funcs(funcs).Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Funcs(htmltemplate.FuncMap(funcs)).Parse(htmlBody))
)

func newView(input *Input) view {
	cur := input.Brief.Currency
	if cur == "" {
		cur = models.DefaultCurrency
	}
	return view{
		Name:     strings.TrimSpace(input.Name),
		Brief:    input.Brief,
		Items:    input.Items,
		Currency: cur,
	}
}

func render(input *Input) (text, html string, err error) {
	v := newView(input)

	var tb strings.Builder
	if err := textTmpl.Execute(&tb, v); err != nil {
		return "", "", err
	}
	var hb strings.Builder
	if err := htmlTmpl.Execute(&hb, v); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}
