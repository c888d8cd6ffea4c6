// Package report renders aggregated audit records into the run's two
// output formats: a self-contained HTML document and a flat CSV export.
// Both renderers are pure functions of the record sequence so the same
// input always yields byte-identical output.
package report

import (
	"bytes"
	"html/template"
	"time"

	"mailboxaudit/internal/audit"
)

// htmlTimeLayout matches the timestamp format shown on report cards.
const htmlTimeLayout = "2006-01-02 15:04"

// NoPermissionsNotice is shown on a card when all three permission
// categories are empty.
const NoPermissionsNotice = "No additional permissions detected"

type htmlView struct {
	Generated string
	Total     int
	Succeeded int
	Failed    int
	Cards     []htmlCard
}

type htmlCard struct {
	Address      string
	Error        string
	Total        int
	Read         int
	Unread       int
	LastReceived string
	LastSent     string
	Groups       []htmlGroup
	Recent       []htmlMessage
}

type htmlGroup struct {
	Title   string
	Entries []string
}

type htmlMessage struct {
	Subject  string
	Sender   string
	Received string
}

// RenderHTML renders the full record set into one styled document with a
// summary block and one card per record, in record order. Error records
// show only the error message.
func RenderHTML(records []audit.ReportRecord, generatedAt time.Time) ([]byte, error) {
	view := htmlView{
		Generated: generatedAt.Format("2006-01-02 15:04:05"),
		Total:     len(records),
		Cards:     make([]htmlCard, 0, len(records)),
	}
	for _, record := range records {
		if record.Error == "" {
			view.Succeeded++
		} else {
			view.Failed++
		}
		view.Cards = append(view.Cards, buildCard(record))
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildCard(record audit.ReportRecord) htmlCard {
	card := htmlCard{
		Address:      record.Address,
		Error:        record.Error,
		Total:        record.Total,
		Read:         record.Read,
		Unread:       record.Unread,
		LastReceived: formatHTMLTime(record.LastReceived),
		LastSent:     formatHTMLTime(record.LastSent),
	}
	if record.Error != "" {
		return card
	}

	groups := []struct {
		title   string
		entries []string
	}{
		{"Full Access", record.Permissions.FullAccess},
		{"Send As", record.Permissions.SendAs},
		{"Send on Behalf", record.Permissions.SendOnBehalf},
	}
	for _, g := range groups {
		if len(g.entries) == 0 {
			continue
		}
		card.Groups = append(card.Groups, htmlGroup{Title: g.title, Entries: g.entries})
	}

	for _, msg := range record.RecentRead {
		card.Recent = append(card.Recent, htmlMessage{
			Subject:  msg.Subject,
			Sender:   msg.Sender,
			Received: msg.Received.Format(htmlTimeLayout),
		})
	}
	return card
}

func formatHTMLTime(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format(htmlTimeLayout)
}

var reportTemplate = template.Must(template.New("report").Parse(htmlDocument))

const htmlDocument = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Mailbox Audit Report</title>
<style>
body { font-family: "Segoe UI", Arial, sans-serif; margin: 24px; background: #f4f6f8; color: #24292f; }
h1 { font-size: 22px; margin: 0 0 4px; }
.generated { color: #57606a; margin-bottom: 16px; }
.summary { background: #ffffff; border: 1px solid #d0d7de; border-radius: 6px; padding: 12px 16px; margin-bottom: 20px; }
.summary span { margin-right: 24px; }
.card { background: #ffffff; border: 1px solid #d0d7de; border-radius: 6px; padding: 16px; margin-bottom: 16px; }
.card h2 { font-size: 16px; margin: 0 0 12px; }
.card.failed { border-left: 4px solid #cf222e; }
.error { color: #cf222e; }
.stats { display: grid; grid-template-columns: repeat(5, minmax(120px, 1fr)); gap: 8px; margin-bottom: 12px; }
.stat { background: #f6f8fa; border-radius: 4px; padding: 8px; }
.stat .label { font-size: 11px; text-transform: uppercase; color: #57606a; }
.stat .value { font-size: 14px; font-weight: 600; }
.perms h3, .recent-title { font-size: 13px; margin: 8px 0 4px; }
.perms ul { margin: 0 0 8px; padding-left: 20px; }
.none { color: #57606a; font-style: italic; }
table { border-collapse: collapse; width: 100%; margin-top: 4px; }
th, td { border: 1px solid #d0d7de; padding: 6px 8px; text-align: left; font-size: 13px; }
th { background: #f6f8fa; }
</style>
</head>
<body>
<h1>Mailbox Audit Report</h1>
<div class="generated">Generated {{.Generated}}</div>
<div class="summary">
<span>Mailboxes: <strong>{{.Total}}</strong></span>
<span>Succeeded: <strong>{{.Succeeded}}</strong></span>
<span>Failed: <strong>{{.Failed}}</strong></span>
</div>
{{range .Cards}}<div class="card{{if .Error}} failed{{end}}">
<h2>{{.Address}}</h2>
{{if .Error}}<div class="error">{{.Error}}</div>
{{else}}<div class="stats">
<div class="stat"><div class="label">Total Messages</div><div class="value">{{.Total}}</div></div>
<div class="stat"><div class="label">Read</div><div class="value">{{.Read}}</div></div>
<div class="stat"><div class="label">Unread</div><div class="value">{{.Unread}}</div></div>
<div class="stat"><div class="label">Last Received</div><div class="value">{{.LastReceived}}</div></div>
<div class="stat"><div class="label">Last Sent</div><div class="value">{{.LastSent}}</div></div>
</div>
<div class="perms">
{{if .Groups}}{{range .Groups}}<h3>{{.Title}}</h3>
<ul>
{{range .Entries}}<li>{{.}}</li>
{{end}}</ul>
{{end}}{{else}}<div class="none">` + NoPermissionsNotice + `</div>
{{end}}</div>
{{if .Recent}}<div class="recent-title">Recently Read Messages</div>
<table>
<tr><th>Subject</th><th>Sender</th><th>Received</th></tr>
{{range .Recent}}<tr><td>{{.Subject}}</td><td>{{.Sender}}</td><td>{{.Received}}</td></tr>
{{end}}</table>
{{end}}{{end}}</div>
{{end}}</body>
</html>
`
