package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testPages(n int, audio bool) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{
			Number: i + 1,
			Text:   fmt.Sprintf("Texto de la página %d & más", i+1),
			Image:  &Image{Data: []byte(fmt.Sprintf("jpeg-%d", i+1)), MediaType: "image/jpeg"},
		}
		if audio {
			pages[i].Audio = []byte(fmt.Sprintf("RIFF-%d", i+1))
			pages[i].DurationMS = 1500
		}
	}
	return pages
}

func buildZip(t *testing.T, book Book, pages []Page) (*zip.Reader, []byte) {
	t.Helper()
	b, err := NewBuilder(book, pages)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	buf, err := b.BuildToBuffer()
	if err != nil {
		t.Fatalf("BuildToBuffer() error = %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	return zr, buf.Bytes()
}

func readEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func countPrefix(zr *zip.Reader, prefix, suffix string) int {
	n := 0
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, suffix) {
			n++
		}
	}
	return n
}

func TestBuilder_Layout(t *testing.T) {
	for _, n := range []int{2, 4, 24} {
		t.Run(fmt.Sprintf("%d pages", n), func(t *testing.T) {
			zr, _ := buildZip(t, Book{Title: "El Dragón", Author: "Cuentos Mágicos AI"}, testPages(n, false))

			first := zr.File[0]
			if first.Name != "mimetype" {
				t.Fatalf("first entry = %q, want mimetype", first.Name)
			}
			if first.Method != zip.Store {
				t.Errorf("mimetype method = %d, want Store", first.Method)
			}
			if got := readEntry(t, zr, "mimetype"); got != "application/epub+zip" {
				t.Errorf("mimetype = %q", got)
			}

			if got := countPrefix(zr, "OEBPS/text/page", ".xhtml"); got != n {
				t.Errorf("page documents = %d, want %d", got, n)
			}
			if got := countPrefix(zr, "OEBPS/images/page", ".jpg"); got != n {
				t.Errorf("page images = %d, want %d", got, n)
			}
			if got := countPrefix(zr, "OEBPS/images/cover", ""); got != 1 {
				t.Errorf("cover images = %d, want 1", got)
			}
			if got := countPrefix(zr, "OEBPS/", ".opf"); got != 1 {
				t.Errorf("package documents = %d, want 1", got)
			}
			if got := countPrefix(zr, "OEBPS/", ".ncx"); got != 1 {
				t.Errorf("ncx documents = %d, want 1", got)
			}
			if got := countPrefix(zr, "OEBPS/smil/", ""); got != 0 {
				t.Errorf("smil documents = %d, want 0 without audio", got)
			}

			container := readEntry(t, zr, "META-INF/container.xml")
			if !strings.Contains(container, `full-path="OEBPS/content.opf"`) {
				t.Errorf("container.xml does not reference content.opf:\n%s", container)
			}
		})
	}
}

func TestBuilder_NCXPlayOrder(t *testing.T) {
	zr, _ := buildZip(t, Book{Title: "Orden"}, testPages(6, false))
	ncx := readEntry(t, zr, "OEBPS/toc.ncx")

	last := -1
	for i := 1; i <= 6; i++ {
		needle := fmt.Sprintf(`<navPoint id="navPoint-%d" playOrder="%d">`, i, i)
		idx := strings.Index(ncx, needle)
		if idx < 0 {
			t.Fatalf("missing %s", needle)
		}
		if idx <= last {
			t.Errorf("navPoint-%d out of order", i)
		}
		last = idx
		if !strings.Contains(ncx, fmt.Sprintf("<text>Página %d</text>", i)) {
			t.Errorf("missing label for page %d", i)
		}
	}
}

func TestBuilder_PackageDocument(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	zr, _ := buildZip(t, Book{ID: "urn:uuid:1234", Title: "Gatos & <Globos>", Author: "Cuentos Mágicos AI", CreatedAt: created}, testPages(2, false))
	opf := readEntry(t, zr, "OEBPS/content.opf")

	for _, want := range []string{
		`<dc:identifier id="pub-id">urn:uuid:1234</dc:identifier>`,
		`<dc:title>Gatos &amp; &lt;Globos&gt;</dc:title>`,
		`<dc:creator>Cuentos Mágicos AI</dc:creator>`,
		`<dc:language>es</dc:language>`,
		`<meta property="dcterms:modified">2026-03-01T12:00:00Z</meta>`,
		`<meta name="cover" content="cover-image"/>`,
		`properties="cover-image"`,
		`<spine toc="ncx">`,
		`<itemref idref="page1"/>`,
		`<itemref idref="page2"/>`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("content.opf missing %s", want)
		}
	}
	if strings.Contains(opf, "media-overlay") {
		t.Error("content.opf declares overlays without audio")
	}
}

func TestBuilder_PageDocument(t *testing.T) {
	zr, _ := buildZip(t, Book{Title: "T"}, testPages(2, false))
	page := readEntry(t, zr, "OEBPS/text/page2.xhtml")

	for _, want := range []string{
		`xml:lang="es"`,
		`<title>Página 2</title>`,
		`href="../css/stylesheet.css"`,
		`<img src="../images/page2.jpg" alt="Ilustración de la página 2"/>`,
		`<p id="text">Texto de la página 2 &amp; más</p>`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page2.xhtml missing %s\n%s", want, page)
		}
	}
}

func TestBuilder_MediaOverlays(t *testing.T) {
	zr, _ := buildZip(t, Book{Title: "Narrado", Narrator: "Kore"}, testPages(2, true))

	if got := countPrefix(zr, "OEBPS/smil/page", ".smil"); got != 2 {
		t.Errorf("smil documents = %d, want 2", got)
	}
	if got := countPrefix(zr, "OEBPS/audio/page", ".wav"); got != 2 {
		t.Errorf("audio files = %d, want 2", got)
	}
	if got := readEntry(t, zr, "OEBPS/audio/page1.wav"); got != "RIFF-1" {
		t.Errorf("audio payload = %q", got)
	}

	opf := readEntry(t, zr, "OEBPS/content.opf")
	for _, want := range []string{
		`media-overlay="page1_overlay"`,
		`<meta property="media:duration">00:00:03.000</meta>`,
		`<meta property="media:duration" refines="#page2_overlay">00:00:01.500</meta>`,
		`<meta property="media:narrator">Kore</meta>`,
		`media-type="application/smil+xml"`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("content.opf missing %s", want)
		}
	}

	smil := readEntry(t, zr, "OEBPS/smil/page1.smil")
	if !strings.Contains(smil, `<text src="../text/page1.xhtml#text"/>`) {
		t.Errorf("smil text ref missing:\n%s", smil)
	}
	if !strings.Contains(smil, `clipEnd="1.500s"`) {
		t.Errorf("smil clipEnd missing:\n%s", smil)
	}

	css := readEntry(t, zr, "OEBPS/css/stylesheet.css")
	if !strings.Contains(css, "-epub-media-overlay-active") {
		t.Error("stylesheet missing active class")
	}
}

func TestBuilder_PartialAudioSkipsOverlays(t *testing.T) {
	pages := testPages(2, true)
	pages[1].Audio = nil
	zr, _ := buildZip(t, Book{Title: "Parcial"}, pages)

	if got := countPrefix(zr, "OEBPS/smil/", ""); got != 0 {
		t.Errorf("smil documents = %d, want 0", got)
	}
}

func TestNewBuilder_RequiresCover(t *testing.T) {
	pages := testPages(2, false)
	for i := range pages {
		pages[i].Image = nil
	}
	if _, err := NewBuilder(Book{Title: "Sin portada"}, pages); !errors.Is(err, ErrNoCover) {
		t.Fatalf("NewBuilder() error = %v, want ErrNoCover", err)
	}
}

func TestNewBuilder_CoverUsesFirstImage(t *testing.T) {
	pages := testPages(3, false)
	pages[0].Image = nil
	pages[1].Image = &Image{Data: []byte("png-2"), MediaType: "image/png"}

	zr, _ := buildZip(t, Book{Title: "Portada"}, pages)
	if got := readEntry(t, zr, "OEBPS/images/cover.png"); got != "png-2" {
		t.Errorf("cover = %q, want png-2", got)
	}
	page1 := readEntry(t, zr, "OEBPS/text/page1.xhtml")
	if strings.Contains(page1, "<img") {
		t.Error("page without image rendered an img element")
	}
}

func TestBuilder_Build(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "story.epub")
	b, err := NewBuilder(Book{Title: "Archivo"}, testPages(2, false))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Build(out); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("epub file is empty")
	}
}

func TestBuilder_Write(t *testing.T) {
	b, err := NewBuilder(Book{Title: "Flujo"}, testPages(2, false))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := b.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() < 38 {
		t.Fatalf("Write() wrote %d bytes", buf.Len())
	}
	if !bytes.HasPrefix(buf.Bytes()[30:], []byte("mimetype")) {
		t.Error("mimetype is not the first entry")
	}
}

func TestParagraphs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"una línea", []string{"una línea"}},
		{"uno\ndos", []string{"uno dos"}},
		{"uno\n\ndos", []string{"uno", "dos"}},
		{"  \n\n ", []string{""}},
	}
	for _, tt := range tests {
		got := paragraphs(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("paragraphs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatClockTime(t *testing.T) {
	if got := formatClockTime(3723004); got != "01:02:03.004" {
		t.Errorf("formatClockTime = %q", got)
	}
	if got := formatSMILTime(12345); got != "12.345s" {
		t.Errorf("formatSMILTime = %q", got)
	}
}
