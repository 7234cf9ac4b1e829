package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/example/vmdisk-report/internal/types"
)

const (
	CaptionByPercent = "Disks by free space"
	CaptionByVM      = "Disks by VM"
)

const htmlTemplate = `{{define "table"}}
    <table>
        <caption>{{.Caption}}</caption>
        <tr>
            <th>VM</th>
            <th>Disk</th>
            <th>Capacity (MB)</th>
            <th>Free (MB)</th>
            <th>Free (%)</th>
        </tr>
        {{- range .Rows}}
        <tr{{if warn . $.WarnBelow}} class="low"{{end}}>
            <td>{{.VM}}</td>
            <td>{{.Path}}</td>
            <td class="num">{{.CapacityMB}}</td>
            <td class="num">{{.FreeMB}}</td>
            <td class="num">{{percent .}}</td>
        </tr>
        {{- end}}
    </table>
{{end}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Calibri, Arial, sans-serif; font-size: 10pt; margin: 20px; color: #333; }
        h1 { font-size: 16pt; color: #1f4e79; }
        table { border-collapse: collapse; margin-bottom: 24px; }
        caption { font-weight: bold; font-size: 12pt; text-align: left; padding: 6px 0; color: #1f4e79; }
        th, td { border: 1px solid #999; padding: 4px 8px; text-align: left; }
        th { background-color: #1f4e79; color: #fff; }
        td.num { text-align: right; }
        tr:nth-child(even) { background-color: #f2f2f2; }
        tr.low td { background-color: #f8d7da; color: #842029; }
        .footer { font-size: 8pt; color: #777; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p><strong>Endpoint:</strong> {{.Endpoint}}{{with .Product}} ({{.}}){{end}}</p>
{{template "table" .ByPercent}}
{{template "table" .ByVM}}
    <p class="footer">Generated {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}. {{len .ByVM.Rows}} disk(s).</p>
</body>
</html>
`

var documentTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": FormatPercent,
	"warn":    isLow,
}).Parse(htmlTemplate))

type table struct {
	Caption   string
	Rows      []types.DiskRow
	WarnBelow int
}

type document struct {
	*types.Report
	ByPercent table
	ByVM      table
}

// FormatPercent renders a row's free percentage, or N/A when unknown.
func FormatPercent(r types.DiskRow) string {
	if !r.PercentKnown {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", r.FreePercent)
}

func isLow(r types.DiskRow, warnBelow int) bool {
	return r.PercentKnown && r.FreePercent < warnBelow
}

// RenderHTML renders the report as a standalone HTML document with two
// tables: rows sorted by free percentage, then rows in enumeration order.
func RenderHTML(r *types.Report) ([]byte, error) {
	doc := document{
		Report:    r,
		ByPercent: table{Caption: CaptionByPercent, Rows: SortByFreePercent(r.Rows), WarnBelow: r.WarnBelowPercent},
		ByVM:      table{Caption: CaptionByVM, Rows: r.Rows, WarnBelow: r.WarnBelowPercent},
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderTable renders a single captioned table fragment.
func RenderTable(caption string, rows []types.DiskRow, warnBelow int) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.ExecuteTemplate(&buf, "table", table{Caption: caption, Rows: rows, WarnBelow: warnBelow}); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}
	return buf.String(), nil
}
