package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/wav"
)

// readyStory builds a story whose pages hold data-URI images and PCM of
// 2*(i+1) bytes for page i.
func readyStory(n int) *story.Story {
	s := &story.Story{Title: "El  Dragón\tMiedoso"}
	for i := 0; i < n; i++ {
		pcm := bytes.Repeat([]byte{byte(i + 1)}, 2*(i+1))
		b64 := base64.StdEncoding.EncodeToString(pcm)
		s.Pages = append(s.Pages, story.Page{
			ID:          i,
			Text:        fmt.Sprintf("Página %d <del> cuento", i+1),
			ImagePrompt: fmt.Sprintf("scene %d", i+1),
			ImageURL:    DataURI("image/jpeg", []byte(fmt.Sprintf("img-%d", i+1))),
			AudioURL:    DataURI("audio/wav", wav.Encode(pcm)),
			PCMData:     b64,
		})
	}
	return s
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		f     Format
		want  string
	}{
		{"El Dragón Miedoso", FormatHTML, "El_Dragón_Miedoso.html"},
		{"El  Dragón\tMiedoso", FormatEPUB, "El_Dragón_Miedoso.epub"},
		{"Gatos", FormatAudiobook, "Gatos_audiolibro.wav"},
		{"Gatos", FormatNarratedEPUB, "Gatos_narrado.epub"},
		{"  ", FormatHTML, "cuento.html"},
		{"a/b: c", FormatHTML, "ab_c.html"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Filename(tt.title, tt.f); got != tt.want {
				t.Errorf("Filename(%q, %s) = %q, want %q", tt.title, tt.f, got, tt.want)
			}
		})
	}
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats("html, EPUB,audiobook,narrated-epub")
	if err != nil {
		t.Fatalf("ParseFormats() error = %v", err)
	}
	want := []Format{FormatHTML, FormatEPUB, FormatAudiobook, FormatNarratedEPUB}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("ParseFormats() = %v, want %v", got, want)
	}
	if _, err := ParseFormats("pdf"); err == nil {
		t.Error("expected error for pdf")
	}
	if _, err := ParseFormats(" , "); err == nil {
		t.Error("expected error for empty list")
	}
}

func TestDecodeDataURI(t *testing.T) {
	res, err := DecodeDataURI(DataURI("image/png", []byte("png!")))
	if err != nil {
		t.Fatalf("DecodeDataURI() error = %v", err)
	}
	if res.MediaType != "image/png" || string(res.Data) != "png!" {
		t.Errorf("got %q %q", res.MediaType, res.Data)
	}

	res, err = DecodeDataURI("data:text/plain;charset=utf-8,hola%20mundo")
	if err != nil {
		t.Fatalf("DecodeDataURI(plain) error = %v", err)
	}
	if res.MediaType != "text/plain" || string(res.Data) != "hola mundo" {
		t.Errorf("got %q %q", res.MediaType, res.Data)
	}

	for _, bad := range []string{"image/png;base64,AA", "data:image/png;base64", "data:image/png;base64,@@"} {
		if _, err := DecodeDataURI(bad); err == nil {
			t.Errorf("DecodeDataURI(%q) expected error", bad)
		}
	}
}

func TestResolver_FetchesOnceAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Write([]byte("remote-png"))
	}))
	defer srv.Close()

	r := NewResolver(ResolverConfig{Client: srv.Client()})
	for i := 0; i < 3; i++ {
		res, err := r.Resolve(context.Background(), srv.URL+"/800x600/F7F3E9/A0AEC0?text=x")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if res.MediaType != "image/png" || string(res.Data) != "remote-png" {
			t.Errorf("got %q %q", res.MediaType, res.Data)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestResolver_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(ResolverConfig{Client: srv.Client()})
	if _, err := r.Resolve(context.Background(), srv.URL+"/missing"); err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("Resolve(404) error = %v", err)
	}
	if _, err := r.Resolve(context.Background(), ""); err == nil {
		t.Error("Resolve(\"\") expected error")
	}
	if _, err := r.Resolve(context.Background(), "ftp://example.com/a.jpg"); err == nil {
		t.Error("Resolve(ftp) expected error")
	}
}

func TestHTML_ElementMode(t *testing.T) {
	s := readyStory(3)
	out, err := HTML(s, AudioElement)
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	html := string(out)

	for _, want := range []string{
		`<html lang="es">`,
		`<title>El  Dragón	Miedoso</title>`,
		`id="page-1" style="display: flex;"`,
		`id="page-2" style="display: none;"`,
		`id="page-3" style="display: none;"`,
		`<img src="data:image/jpeg;base64,`,
		`alt="Ilustración para la página 2"`,
		`<audio controls src="data:audio/wav;base64,`,
		`<button id="prevBtn" disabled>Anterior</button>`,
		`<span id="page-counter">Página 1 de 3</span>`,
		`<button id="nextBtn">Siguiente</button>`,
		`prevBtn.disabled = pageNumber === 1;`,
		`nextBtn.disabled = pageNumber === totalPages;`,
		`Página 2 &lt;del&gt; cuento`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %s", want)
		}
	}
	if strings.Contains(html, "pcmPages") {
		t.Error("element mode should not embed PCM")
	}
	if strings.Contains(html, "ZgotmplZ") {
		t.Error("template rejected a URL")
	}
	if got := strings.Count(html, "<audio controls"); got != 3 {
		t.Errorf("audio elements = %d, want 3", got)
	}
}

func TestHTML_WebAudioMode(t *testing.T) {
	s := readyStory(2)
	out, err := HTML(s, AudioAuto)
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	html := string(out)

	for _, want := range []string{
		"const pcmPages =",
		s.Pages[0].PCMData,
		"createBufferSource",
		"stopAudio();",
		`<button class="replay" data-page="1">Repetir</button>`,
		`<button class="replay" data-page="2">Repetir</button>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %s", want)
		}
	}
	if strings.Contains(html, "<audio") {
		t.Error("webaudio mode should not embed audio elements")
	}
}

func TestHTML_AutoWithoutPCMUsesElements(t *testing.T) {
	s := readyStory(2)
	for i := range s.Pages {
		s.Pages[i].PCMData = ""
		s.Pages[i].AudioURL = "https://example.com/audio.mp3"
	}
	out, err := HTML(s, AudioAuto)
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if !strings.Contains(string(out), `<audio controls src="https://example.com/audio.mp3">`) {
		t.Error("expected audio element with remote src")
	}
}

func TestHTML_SinglePageDisablesNext(t *testing.T) {
	out, err := HTML(readyStory(1), AudioElement)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `<button id="nextBtn" disabled>Siguiente</button>`) {
		t.Error("next button should start disabled on a single page story")
	}
}

func TestAudiobook(t *testing.T) {
	t.Run("concatenates in page order", func(t *testing.T) {
		s := readyStory(4)
		out, err := Audiobook(s)
		if err != nil {
			t.Fatalf("Audiobook() error = %v", err)
		}
		h, err := wav.ParseHeader(out)
		if err != nil {
			t.Fatalf("ParseHeader() error = %v", err)
		}
		if h.DataSize != 2+4+6+8 {
			t.Errorf("DataSize = %d, want 20", h.DataSize)
		}
		if h.ChunkSize != 36+20 {
			t.Errorf("ChunkSize = %d, want 56", h.ChunkSize)
		}
		data, _ := wav.Data(out)
		want := []byte{1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4}
		if !bytes.Equal(data, want) {
			t.Errorf("data = %v, want %v", data, want)
		}
	})

	t.Run("no audio", func(t *testing.T) {
		s := readyStory(2)
		for i := range s.Pages {
			s.Pages[i].PCMData = ""
			s.Pages[i].AudioURL = ""
		}
		_, err := Audiobook(s)
		if !errors.Is(err, story.ErrNoAudio) || story.KindOf(err) != story.KindExport {
			t.Errorf("Audiobook() error = %v, want ErrNoAudio", err)
		}
		if got := story.UserMessage(err); got != "No hay audio para exportar." {
			t.Errorf("UserMessage = %q", got)
		}
	})

	t.Run("compressed narration only", func(t *testing.T) {
		s := readyStory(2)
		for i := range s.Pages {
			s.Pages[i].PCMData = ""
		}
		if _, err := Audiobook(s); !errors.Is(err, story.ErrAudiobookUnsupported) {
			t.Errorf("Audiobook() error = %v, want ErrAudiobookUnsupported", err)
		}
	})
}

func openZip(t *testing.T, data []byte) map[string]*zip.File {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	return files
}

func TestEPUB(t *testing.T) {
	s := readyStory(4)
	out, err := EPUB(context.Background(), s, NewResolver(ResolverConfig{}), EPUBOptions{})
	if err != nil {
		t.Fatalf("EPUB() error = %v", err)
	}
	files := openZip(t, out)
	for i := 1; i <= 4; i++ {
		for _, name := range []string{
			fmt.Sprintf("OEBPS/text/page%d.xhtml", i),
			fmt.Sprintf("OEBPS/images/page%d.jpg", i),
		} {
			if _, ok := files[name]; !ok {
				t.Errorf("missing %s", name)
			}
		}
	}
	if _, ok := files["OEBPS/images/cover.jpg"]; !ok {
		t.Error("missing cover")
	}
	if _, ok := files["OEBPS/audio/page1.wav"]; ok {
		t.Error("plain epub should not embed audio")
	}
}

func TestEPUB_Narrated(t *testing.T) {
	s := readyStory(2)
	out, err := EPUB(context.Background(), s, NewResolver(ResolverConfig{}), EPUBOptions{Narrated: true})
	if err != nil {
		t.Fatalf("EPUB() error = %v", err)
	}
	files := openZip(t, out)
	for _, name := range []string{"OEBPS/audio/page1.wav", "OEBPS/audio/page2.wav", "OEBPS/smil/page1.smil", "OEBPS/smil/page2.smil"} {
		if _, ok := files[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}

	compressed := readyStory(2)
	compressed.Pages[1].PCMData = ""
	if _, err := EPUB(context.Background(), compressed, NewResolver(ResolverConfig{}), EPUBOptions{Narrated: true}); !errors.Is(err, story.ErrAudiobookUnsupported) {
		t.Errorf("EPUB(narrated, no pcm) error = %v", err)
	}
}

func TestEPUB_NoCover(t *testing.T) {
	s := readyStory(2)
	for i := range s.Pages {
		s.Pages[i].ImageURL = ""
	}
	_, err := EPUB(context.Background(), s, NewResolver(ResolverConfig{}), EPUBOptions{})
	if !errors.Is(err, story.ErrNoCover) {
		t.Fatalf("EPUB() error = %v, want ErrNoCover", err)
	}
	if got := story.UserMessage(err); got != "Se necesita al menos una imagen para crear la portada del EPUB." {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestExporter_RequiresReady(t *testing.T) {
	s := readyStory(2)
	s.Pages[1].ImageURL = ""
	e := New(Config{})
	for _, f := range Formats {
		if _, err := e.Export(context.Background(), s, f); !errors.Is(err, story.ErrNotReady) {
			t.Errorf("Export(%s) error = %v, want ErrNotReady", f, err)
		}
	}
}

func TestExporter_DeliverToMemory(t *testing.T) {
	sink := NewMemorySink()
	e := New(Config{})
	arts, err := e.Deliver(context.Background(), readyStory(2), Formats, sink)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(arts) != len(Formats) {
		t.Fatalf("artifacts = %d, want %d", len(arts), len(Formats))
	}
	want := []string{
		"El_Dragón_Miedoso.epub",
		"El_Dragón_Miedoso.html",
		"El_Dragón_Miedoso_audiolibro.wav",
		"El_Dragón_Miedoso_narrado.epub",
	}
	if got := sink.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	a, _ := sink.Get("El_Dragón_Miedoso.html")
	if a.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", a.ContentType)
	}
}

func TestExporter_DeliverStopsOnError(t *testing.T) {
	s := readyStory(2)
	for i := range s.Pages {
		s.Pages[i].PCMData = ""
	}
	sink := NewMemorySink()
	arts, err := New(Config{}).Deliver(context.Background(), s, []Format{FormatHTML, FormatAudiobook, FormatEPUB}, sink)
	if !errors.Is(err, story.ErrAudiobookUnsupported) {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(arts) != 1 || len(sink.Names()) != 1 {
		t.Errorf("delivered %d artifacts, want 1", len(arts))
	}
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "El_Dragón")
	sink := DirSink{Dir: dir}
	if err := sink.Deliver(context.Background(), Artifact{Name: "a.html", Data: []byte("<p>")}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	got, err := os.ReadFile(sink.Path("a.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "<p>" {
		t.Errorf("file = %q", got)
	}
}

func TestResponseSink(t *testing.T) {
	rec := httptest.NewRecorder()
	a := Artifact{Name: "Gatos.epub", ContentType: "application/epub+zip", Data: []byte("zip")}
	if err := (ResponseSink{W: rec}).Deliver(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="Gatos.epub"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/epub+zip" {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Body.String() != "zip" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
