package epub

import (
	"fmt"
	"strings"
)

// generatePageXHTML renders one page: its illustration followed by its text.
// The text paragraph carries id="text" so a SMIL overlay can reference it.
func (b *Builder) generatePageXHTML(p Page) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="%s">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="../css/stylesheet.css"/>
</head>
<body>
`, b.book.Language, pageLabel(p)))

	if p.Image != nil && len(p.Image.Data) > 0 {
		sb.WriteString(fmt.Sprintf("  <img src=\"../%s\" alt=\"Ilustración de la página %d\"/>\n", imageHref(p), p.Number))
	}
	for i, para := range paragraphs(p.Text) {
		if i == 0 {
			sb.WriteString(fmt.Sprintf("  <p id=\"%s\">%s</p>\n", textFragment, escapeXML(para)))
			continue
		}
		sb.WriteString(fmt.Sprintf("  <p>%s</p>\n", escapeXML(para)))
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

const textFragment = "text"

// paragraphs splits text on blank lines; single newlines are kept as spaces.
func paragraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.Join(strings.Fields(block), " ")
		if block != "" {
			out = append(out, block)
		}
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}
