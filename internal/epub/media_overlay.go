package epub

import (
	"archive/zip"
	"fmt"
	"strings"
)

// hasOverlays reports whether every page carries narration.
func (b *Builder) hasOverlays() bool {
	if len(b.pages) == 0 {
		return false
	}
	for _, p := range b.pages {
		if len(p.Audio) == 0 {
			return false
		}
	}
	return true
}

func overlayID(p Page) string { return fmt.Sprintf("page%d_overlay", p.Number) }

func audioHref(p Page) string { return fmt.Sprintf("audio/page%d.wav", p.Number) }

func smilHref(p Page) string { return fmt.Sprintf("smil/page%d.smil", p.Number) }

func (b *Builder) totalDurationMS() int {
	var total int
	for _, p := range b.pages {
		total += p.DurationMS
	}
	return total
}

func (b *Builder) overlayMetadata() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("    <meta property=\"media:duration\">%s</meta>\n", formatClockTime(b.totalDurationMS())))
	for _, p := range b.pages {
		sb.WriteString(fmt.Sprintf("    <meta property=\"media:duration\" refines=\"#%s\">%s</meta>\n",
			overlayID(p), formatClockTime(p.DurationMS)))
	}
	sb.WriteString("    <meta property=\"media:active-class\">-epub-media-overlay-active</meta>\n")
	if b.book.Narrator != "" {
		sb.WriteString(fmt.Sprintf("    <meta property=\"media:narrator\">%s</meta>\n", escapeXML(b.book.Narrator)))
	}
	return sb.String()
}

func (b *Builder) overlayManifest() string {
	var sb strings.Builder
	for _, p := range b.pages {
		sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"application/smil+xml\"/>\n",
			overlayID(p), smilHref(p)))
	}
	for _, p := range b.pages {
		sb.WriteString(fmt.Sprintf("    <item id=\"page%d_audio\" href=\"%s\" media-type=\"audio/wav\"/>\n",
			p.Number, audioHref(p)))
	}
	return sb.String()
}

// writeOverlays writes one SMIL document and one WAV file per page.
func (b *Builder) writeOverlays(zw *zip.Writer) error {
	for _, p := range b.pages {
		if err := writeEntry(zw, "OEBPS/"+smilHref(p), zip.Deflate, []byte(generateSMIL(p))); err != nil {
			return fmt.Errorf("failed to write SMIL for page %d: %w", p.Number, err)
		}
	}
	for _, p := range b.pages {
		if err := writeEntry(zw, "OEBPS/"+audioHref(p), zip.Store, p.Audio); err != nil {
			return fmt.Errorf("failed to write audio for page %d: %w", p.Number, err)
		}
	}
	return nil
}

const overlayStylesheet = `
/* Media Overlay active text highlighting */
.-epub-media-overlay-active {
  background-color: #ffffcc;
}
`
