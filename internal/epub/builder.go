// Package epub provides ePub 3.0 generation for illustrated stories, with
// optional Media Overlays when every page carries narration.
package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNoCover is returned when no page has an image to use as the cover.
var ErrNoCover = errors.New("epub: at least one page image is required for the cover")

// Book contains the metadata needed for epub generation.
type Book struct {
	ID        string // urn:uuid identifier; generated when empty
	Title     string
	Author    string
	Language  string // ISO 639-1 code (default "es")
	Narrator  string
	CreatedAt time.Time
}

// Image is an image resource and its media type.
type Image struct {
	Data      []byte
	MediaType string
}

// Page is one story page. Audio, when set, is a complete WAV file.
type Page struct {
	Number     int // 1-based
	Text       string
	Image      *Image
	Audio      []byte
	DurationMS int
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book  Book
	cover *Image
	pages []Page
}

// NewBuilder creates a new epub builder. The cover is the first page image.
func NewBuilder(book Book, pages []Page) (*Builder, error) {
	b := &Builder{book: book, pages: pages}
	for _, p := range pages {
		if p.Image != nil && len(p.Image.Data) > 0 {
			b.cover = p.Image
			break
		}
	}
	if b.cover == nil {
		return nil, ErrNoCover
	}
	if b.book.ID == "" {
		b.book.ID = "urn:uuid:" + uuid.New().String()
	}
	if b.book.Language == "" {
		b.book.Language = "es"
	}
	if b.book.CreatedAt.IsZero() {
		b.book.CreatedAt = time.Now()
	}
	return b, nil
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return b.Write(f)
}

// BuildToBuffer generates the epub and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write writes the epub to a writer.
func (b *Builder) Write(w io.Writer) error {
	zw := zip.NewWriter(w)

	// mimetype must be the first entry and uncompressed.
	if err := writeEntry(zw, "mimetype", zip.Store, []byte("application/epub+zip")); err != nil {
		return err
	}

	entries := []struct {
		name    string
		content string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", b.generatePackage()},
		{"OEBPS/nav.xhtml", b.generateNavigation()},
		{"OEBPS/toc.ncx", b.generateNCX()},
		{"OEBPS/css/stylesheet.css", b.stylesheet()},
	}
	for _, e := range entries {
		if err := writeEntry(zw, e.name, zip.Deflate, []byte(e.content)); err != nil {
			return err
		}
	}

	if err := writeEntry(zw, "OEBPS/"+coverHref(b.cover), zip.Store, b.cover.Data); err != nil {
		return err
	}

	for _, p := range b.pages {
		if err := writeEntry(zw, "OEBPS/"+pageHref(p), zip.Deflate, []byte(b.generatePageXHTML(p))); err != nil {
			return fmt.Errorf("failed to write page %d: %w", p.Number, err)
		}
		if p.Image != nil && len(p.Image.Data) > 0 {
			if err := writeEntry(zw, "OEBPS/"+imageHref(p), zip.Store, p.Image.Data); err != nil {
				return fmt.Errorf("failed to write image for page %d: %w", p.Number, err)
			}
		}
	}

	if b.hasOverlays() {
		if err := b.writeOverlays(zw); err != nil {
			return err
		}
	}

	return zw.Close()
}

func writeEntry(zw *zip.Writer, name string, method uint16, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

func (b *Builder) stylesheet() string {
	if b.hasOverlays() {
		return defaultStylesheet + overlayStylesheet
	}
	return defaultStylesheet
}

const defaultStylesheet = `body {
  font-family: sans-serif;
  margin: 1em;
}

img {
  max-width: 100%;
  height: auto;
  display: block;
  margin: 0 auto;
}

p {
  text-align: center;
  margin-top: 1em;
  font-size: 1.2em;
  line-height: 1.6;
}
`
