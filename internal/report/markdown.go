package report

import (
	"fmt"
	"strings"

	"github.com/example/vmdisk-report/internal/types"
)

// RenderMarkdown renders the same two tables as RenderHTML in Markdown.
func RenderMarkdown(r *types.Report) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n**Endpoint:** %s", r.Title, r.Endpoint)
	if r.Product != "" {
		fmt.Fprintf(&b, " (%s)", r.Product)
	}
	fmt.Fprintf(&b, "\n\n**Generated:** %s\n", r.Timestamp.Format("2006-01-02 15:04:05 MST"))

	writeMarkdownTable(&b, CaptionByPercent, SortByFreePercent(r.Rows), r.WarnBelowPercent)
	writeMarkdownTable(&b, CaptionByVM, r.Rows, r.WarnBelowPercent)
	return b.String(), nil
}

func writeMarkdownTable(b *strings.Builder, caption string, rows []types.DiskRow, warnBelow int) {
	fmt.Fprintf(b, "\n## %s\n\n", caption)
	b.WriteString("| VM | Disk | Capacity (MB) | Free (MB) | Free (%) |\n")
	b.WriteString("|----|------|---------------|-----------|----------|\n")
	for _, r := range rows {
		pct := FormatPercent(r)
		if isLow(r, warnBelow) {
			pct = "**" + pct + "**"
		}
		fmt.Fprintf(b, "| %s | %s | %d | %d | %s |\n", escapeCell(r.VM), escapeCell(r.Path), r.CapacityMB, r.FreeMB, pct)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
