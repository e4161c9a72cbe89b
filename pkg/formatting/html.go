package formatting

import (
	"fmt"
	"strings"
)

const htmlBoxStyle = "border: 1pt solid #848484; padding: 10pt; background-color: #fff4d0; font-size: 12pt; " +
	"line-height: 12pt; font-family: 'Arial'; color: Black; text-align: left;"

// HTMLBox wraps message in the highlighted banner used for audit text written into mail bodies.
func HTMLBox(message string) string {
	return fmt.Sprintf("<div style=\"%s\">%s</div>", htmlBoxStyle, message)
}

// HTMLList renders items as an unordered HTML list.
func HTMLList(items []string) string {
	var sb strings.Builder
	sb.WriteString("<ul>")
	for _, item := range items {
		sb.WriteString("<li>")
		sb.WriteString(item)
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
	return sb.String()
}
