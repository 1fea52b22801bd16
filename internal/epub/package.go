package epub

import (
	"fmt"
	"strings"
)

// generatePackage creates the content.opf package document.
func (b *Builder) generatePackage() string {
	var sb strings.Builder
	overlays := b.hasOverlays()

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id" xml:lang="%s">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`, b.book.Language))

	// Dublin Core metadata
	sb.WriteString(fmt.Sprintf("    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", escapeXML(b.book.ID)))
	sb.WriteString(fmt.Sprintf("    <dc:title>%s</dc:title>\n", escapeXML(b.book.Title)))
	if b.book.Author != "" {
		sb.WriteString(fmt.Sprintf("    <dc:creator>%s</dc:creator>\n", escapeXML(b.book.Author)))
	}
	sb.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", escapeXML(b.book.Language)))

	// Modified timestamp (required for ePub 3)
	sb.WriteString(fmt.Sprintf("    <meta property=\"dcterms:modified\">%s</meta>\n",
		b.book.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")))
	// Cover image meta (EPUB 2 compatibility)
	sb.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")

	if overlays {
		sb.WriteString(b.overlayMetadata())
	}

	sb.WriteString("  </metadata>\n\n")

	// Manifest
	sb.WriteString("  <manifest>\n")
	sb.WriteString(fmt.Sprintf("    <item id=\"cover-image\" href=\"%s\" media-type=\"%s\" properties=\"cover-image\"/>\n",
		coverHref(b.cover), mediaType(b.cover)))
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"css\" href=\"css/stylesheet.css\" media-type=\"text/css\"/>\n")

	for _, p := range b.pages {
		if p.Image != nil && len(p.Image.Data) > 0 {
			sb.WriteString(fmt.Sprintf("    <item id=\"img%d\" href=\"%s\" media-type=\"%s\"/>\n",
				p.Number, imageHref(p), mediaType(p.Image)))
		}
	}
	for _, p := range b.pages {
		if overlays {
			sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"application/xhtml+xml\" media-overlay=\"%s\"/>\n",
				pageID(p), pageHref(p), overlayID(p)))
		} else {
			sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n",
				pageID(p), pageHref(p)))
		}
	}
	if overlays {
		sb.WriteString(b.overlayManifest())
	}

	sb.WriteString("  </manifest>\n\n")

	// Spine (reading order)
	sb.WriteString("  <spine toc=\"ncx\">\n")
	for _, p := range b.pages {
		sb.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", pageID(p)))
	}
	sb.WriteString("  </spine>\n")

	sb.WriteString("</package>\n")

	return sb.String()
}

func pageID(p Page) string { return fmt.Sprintf("page%d", p.Number) }

func pageHref(p Page) string { return fmt.Sprintf("text/page%d.xhtml", p.Number) }

func imageHref(p Page) string {
	return fmt.Sprintf("images/page%d%s", p.Number, imageExt(p.Image))
}

func coverHref(img *Image) string { return "images/cover" + imageExt(img) }

func mediaType(img *Image) string {
	if img == nil || img.MediaType == "" {
		return "image/jpeg"
	}
	return img.MediaType
}

func imageExt(img *Image) string {
	switch mediaType(img) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".jpg"
	}
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
