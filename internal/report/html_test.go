package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mailboxaudit/internal/audit"
)

var generatedAt = time.Date(2026, 8, 20, 16, 45, 12, 0, time.UTC)

func renderHTML(t *testing.T, records []audit.ReportRecord) string {
	t.Helper()
	data, err := RenderHTML(records, generatedAt)
	if err != nil {
		t.Fatalf("RenderHTML() error: %v", err)
	}
	return string(data)
}

func TestRenderHTML_SummaryAndStamp(t *testing.T) {
	records := []audit.ReportRecord{
		{Address: "a@co.example"},
		{Address: "b@co.example", Error: "failed to resolve account: gone"},
		{Address: "c@co.example"},
	}

	out := renderHTML(t, records)

	if !strings.Contains(out, "Generated 2026-08-20 16:45:12") {
		t.Error("missing generation timestamp")
	}
	for _, want := range []string{
		"Mailboxes: <strong>3</strong>",
		"Succeeded: <strong>2</strong>",
		"Failed: <strong>1</strong>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary block missing %q", want)
		}
	}
}

func TestRenderHTML_ErrorCardShowsOnlyError(t *testing.T) {
	records := []audit.ReportRecord{
		{Address: "ghost.mbx", Error: "failed to resolve account: account not found"},
	}

	out := renderHTML(t, records)

	if !strings.Contains(out, "failed to resolve account: account not found") {
		t.Error("missing error message")
	}
	if strings.Contains(out, "Total Messages") {
		t.Error("error card must not render the stats grid")
	}
	if strings.Contains(out, NoPermissionsNotice) {
		t.Error("error card must not render the permissions block")
	}
}

func TestRenderHTML_StatsAndAbsentDates(t *testing.T) {
	received := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	records := []audit.ReportRecord{
		{Address: "shared.mbx@co.example", Total: 120, Read: 117, Unread: 3, LastReceived: &received},
	}

	out := renderHTML(t, records)

	for _, want := range []string{"Total Messages", "2026-08-20 10:30", "N/A"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats grid missing %q", want)
		}
	}
}

func TestRenderHTML_PermissionGroups(t *testing.T) {
	records := []audit.ReportRecord{
		{
			Address: "shared.mbx@co.example",
			Permissions: audit.PermissionSet{
				FullAccess:   []string{`DOMAIN\alice (FullAccess)`},
				SendOnBehalf: []string{"Eve Example"},
			},
		},
	}

	out := renderHTML(t, records)

	if !strings.Contains(out, "Full Access") || !strings.Contains(out, `DOMAIN\alice (FullAccess)`) {
		t.Error("missing full access group")
	}
	if !strings.Contains(out, "Send on Behalf") || !strings.Contains(out, "Eve Example") {
		t.Error("missing send-on-behalf group")
	}
	if strings.Contains(out, "<h3>Send As</h3>") {
		t.Error("empty permission category must be omitted")
	}
	if strings.Contains(out, NoPermissionsNotice) {
		t.Error("notice must not appear when any category has entries")
	}
}

func TestRenderHTML_NoPermissionsNotice(t *testing.T) {
	records := []audit.ReportRecord{{Address: "shared.mbx@co.example"}}

	out := renderHTML(t, records)

	if !strings.Contains(out, NoPermissionsNotice) {
		t.Error("missing notice for a mailbox with no grants at all")
	}
}

func TestRenderHTML_RecentMessages(t *testing.T) {
	received := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	records := []audit.ReportRecord{
		{
			Address: "shared.mbx@co.example",
			RecentRead: []audit.MessageSummary{
				{Subject: "weekly status", Sender: "alice@co.example", Received: received},
				{Subject: "Re: <urgent> budget", Sender: "bob@co.example", Received: received.Add(-time.Hour)},
			},
		},
	}

	out := renderHTML(t, records)

	if !strings.Contains(out, "Recently Read Messages") {
		t.Fatal("missing recent messages block")
	}
	first := strings.Index(out, "weekly status")
	second := strings.Index(out, "budget")
	if first < 0 || second < 0 || first > second {
		t.Error("captured messages must render in capture order")
	}
	if !strings.Contains(out, "&lt;urgent&gt;") || strings.Contains(out, "<urgent>") {
		t.Error("message content must be HTML-escaped")
	}
}

func TestRenderHTML_RecentBlockOmittedWhenEmpty(t *testing.T) {
	records := []audit.ReportRecord{{Address: "shared.mbx@co.example"}}

	out := renderHTML(t, records)

	if strings.Contains(out, "Recently Read Messages") {
		t.Error("recent messages block must be omitted when nothing was captured")
	}
}

func TestRenderHTML_Deterministic(t *testing.T) {
	received := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	records := []audit.ReportRecord{
		{Address: "a@co.example", Total: 5, Read: 4, Unread: 1, LastReceived: &received},
		{Address: "b@co.example", Error: "failed to resolve account: gone"},
	}

	first, err := RenderHTML(records, generatedAt)
	if err != nil {
		t.Fatalf("RenderHTML() error: %v", err)
	}
	second, err := RenderHTML(records, generatedAt)
	if err != nil {
		t.Fatalf("RenderHTML() error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two renders of the same records differ")
	}
}
