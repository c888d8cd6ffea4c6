package report

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"mailboxaudit/internal/audit"
)

// csvTimeLayout matches the timestamp format of the tabular export.
const csvTimeLayout = "2006-01-02 15:04:05"

// csvHeader is the fixed column set of the tabular export.
var csvHeader = []string{
	"EmailAddress",
	"TotalMessages",
	"ReadMessages",
	"UnreadMessages",
	"LastReceivedDate",
	"LastSentDate",
	"FullAccessPermissions",
	"SendAsPermissions",
	"SendOnBehalfPermissions",
	"LastReadMessagesCount",
	"Error",
}

// RenderCSV renders one flat row per record, in record order. List-valued
// fields are joined with "; " and absent dates stay empty.
func RenderCSV(records []audit.ReportRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, record := range records {
		row := []string{
			record.Address,
			strconv.Itoa(record.Total),
			strconv.Itoa(record.Read),
			strconv.Itoa(record.Unread),
			formatCSVTime(record.LastReceived),
			formatCSVTime(record.LastSent),
			strings.Join(record.Permissions.FullAccess, "; "),
			strings.Join(record.Permissions.SendAs, "; "),
			strings.Join(record.Permissions.SendOnBehalf, "; "),
			strconv.Itoa(len(record.RecentRead)),
			record.Error,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCSVTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(csvTimeLayout)
}
