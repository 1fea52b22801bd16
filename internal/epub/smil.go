package epub

import (
	"fmt"
	"strings"
)

// generateSMIL maps a page's text paragraph to its whole narration clip.
func generateSMIL(p Page) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<smil xmlns="http://www.w3.org/ns/SMIL" xmlns:epub="http://www.idpf.org/2007/ops" version="3.0">
  <body>
    <seq id="seq1" epub:textref="../`)
	sb.WriteString(pageHref(p))
	sb.WriteString(`">
`)
	sb.WriteString(fmt.Sprintf(`      <par id="par1">
        <text src="../%s#%s"/>
        <audio src="../%s" clipBegin="%s" clipEnd="%s"/>
      </par>
`, pageHref(p), textFragment, audioHref(p), formatSMILTime(0), formatSMILTime(p.DurationMS)))

	sb.WriteString(`    </seq>
  </body>
</smil>
`)

	return sb.String()
}

// formatSMILTime converts milliseconds to SMIL time format (e.g., "12.345s").
func formatSMILTime(ms int) string {
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.3fs", seconds)
}

// formatClockTime converts milliseconds to SMIL clock time (HH:MM:SS.mmm).
func formatClockTime(ms int) string {
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}
