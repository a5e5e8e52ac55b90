package report

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
)

// Pakbon holds everything the packing-slip document shows.
type Pakbon struct {
	Projectnummer string
	Projectnaam   string
	Klant         string
	Locatie       string
	Kastnaam      string
	Systeem       string
	Voeding       string
	Bouwjaar      int
	Goedgekeurd   bool
	// Ondertekenaar is the optional signer name printed under the
	// signature line.
	Ondertekenaar string
	// Datum is the generation date stamp, the only non-deterministic part
	// of the document.
	Datum string
}

const pakbonDateLayout = "02-01-2006"

// NewPakbon assembles the document data from a project and its verdeler.
func NewPakbon(project models.Project, verdeler models.Verdeler, signer string, now time.Time) Pakbon {
	klant := ""
	if project.Client != nil {
		klant = project.Client.Naam
	}

	return Pakbon{
		Projectnummer: project.Nummer,
		Projectnaam:   project.Naam,
		Klant:         klant,
		Locatie:       string(project.Location),
		Kastnaam:      verdeler.Kastnaam,
		Systeem:       verdeler.Systeem,
		Voeding:       verdeler.Voeding,
		Bouwjaar:      verdeler.Bouwjaar,
		Goedgekeurd:   verdeler.Goedgekeurd,
		Ondertekenaar: signer,
		Datum:         now.Format(pakbonDateLayout),
	}
}

var pakbonTemplate = template.Must(template.New("pakbon").Parse(`<!DOCTYPE html>
<html lang="nl">
<head>
<meta charset="utf-8">
<title>Pakbon {{.Projectnummer}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 40px; }
h1 { font-size: 20px; }
table { border-collapse: collapse; width: 100%; margin-top: 16px; }
td, th { border: 1px solid #333; padding: 6px 10px; text-align: left; }
.signature { margin-top: 60px; }
.signature .line { border-top: 1px solid #333; width: 240px; padding-top: 4px; }
</style>
</head>
<body>
<h1>Pakbon</h1>
<p>Project {{.Projectnummer}} &mdash; {{.Projectnaam}}</p>
<table>
<tr><th>Klant</th><td>{{.Klant}}</td></tr>
<tr><th>Locatie</th><td>{{.Locatie}}</td></tr>
<tr><th>Kastnaam</th><td>{{.Kastnaam}}</td></tr>
<tr><th>Systeem</th><td>{{.Systeem}}</td></tr>
<tr><th>Voeding</th><td>{{.Voeding}}</td></tr>
<tr><th>Bouwjaar</th><td>{{.Bouwjaar}}</td></tr>
<tr><th>Keuring</th><td>{{if .Goedgekeurd}}goedgekeurd{{else}}niet gekeurd{{end}}</td></tr>
<tr><th>Datum</th><td>{{.Datum}}</td></tr>
</table>
<div class="signature">
{{if .Ondertekenaar}}<p>Voor ontvangst getekend door {{.Ondertekenaar}}:</p>{{else}}<p>Voor ontvangst:</p>{{end}}
<div class="line">Handtekening</div>
</div>
</body>
</html>
`))

// HTML renders the document body. Pure aside from the caller-provided
// date stamp.
func (p Pakbon) HTML() (string, error) {
	var buf bytes.Buffer

	if err := pakbonTemplate.Execute(&buf, p); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// RenderPakbon builds the packing slip for a project/verdeler pair and
// converts it to PDF bytes.
func (c *Client) RenderPakbon(
	ctx context.Context,
	project models.Project,
	verdeler models.Verdeler,
	signer string,
) ([]byte, error) {
	html, err := NewPakbon(project, verdeler, signer, time.Now()).HTML()
	if err != nil {
		return nil, err
	}

	return c.RenderHTML(ctx, html)
}
