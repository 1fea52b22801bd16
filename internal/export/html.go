package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/wav"
)

// AudioMode selects how narration is embedded in the HTML storybook.
type AudioMode string

const (
	// AudioAuto picks webaudio when every page has PCM, element otherwise.
	AudioAuto AudioMode = ""
	// AudioElement embeds an <audio controls> element per page.
	AudioElement AudioMode = "element"
	// AudioWebAudio embeds base64 PCM decoded in the browser.
	AudioWebAudio AudioMode = "webaudio"
)

// ParseAudioMode accepts "", "auto", "element" or "webaudio".
func ParseAudioMode(s string) (AudioMode, error) {
	switch s {
	case "", "auto":
		return AudioAuto, nil
	case string(AudioElement), string(AudioWebAudio):
		return AudioMode(s), nil
	}
	return "", fmt.Errorf("unknown html audio mode %q (want element or webaudio)", s)
}

func (m AudioMode) resolve(s *story.Story) AudioMode {
	if m != AudioAuto {
		return m
	}
	if s.HasPCM() {
		return AudioWebAudio
	}
	return AudioElement
}

type htmlPage struct {
	Number   int
	Text     string
	ImageURL template.URL
	AudioURL template.URL
	HasPCM   bool
}

type htmlData struct {
	Title    string
	Total    int
	Pages    []htmlPage
	WebAudio bool
	PCM      []string
	Rate     int
}

// HTML renders a self-contained interactive storybook. Images are embedded
// as whatever reference the page holds.
func HTML(s *story.Story, mode AudioMode) ([]byte, error) {
	if s == nil || len(s.Pages) == 0 {
		return nil, story.ExportError(fmt.Errorf("story has no pages"))
	}
	mode = mode.resolve(s)

	data := htmlData{
		Title:    s.Title,
		Total:    len(s.Pages),
		WebAudio: mode == AudioWebAudio,
		Rate:     wav.SampleRate,
	}
	for i, p := range s.Pages {
		hp := htmlPage{
			Number: i + 1,
			Text:   p.Text,
			// References come from the pipeline's own providers.
			ImageURL: template.URL(p.ImageURL),
			HasPCM:   p.PCMData != "",
		}
		if data.WebAudio {
			data.PCM = append(data.PCM, p.PCMData)
		} else {
			ref, err := audioRef(p)
			if err != nil {
				return nil, story.ExportError(fmt.Errorf("page %d: %w", i+1, err))
			}
			hp.AudioURL = template.URL(ref)
		}
		data.Pages = append(data.Pages, hp)
	}

	var buf bytes.Buffer
	if err := storybookTmpl.Execute(&buf, data); err != nil {
		return nil, story.ExportError(fmt.Errorf("failed to render html: %w", err))
	}
	return buf.Bytes(), nil
}

// audioRef returns a playable reference, wrapping bare PCM as a WAV data URI.
func audioRef(p story.Page) (string, error) {
	if p.AudioURL != "" {
		return p.AudioURL, nil
	}
	if p.PCMData == "" {
		return "", nil
	}
	w, err := wav.EncodeBase64(p.PCMData)
	if err != nil {
		return "", err
	}
	return DataURI("audio/wav", w), nil
}

var storybookTmpl = template.Must(template.New("storybook").Parse(storybookHTML))

const storybookHTML = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    body { font-family: sans-serif; margin: 0; background-color: #f0f8ff; display: flex; flex-direction: column; align-items: center; justify-content: center; min-height: 100vh; }
    .storybook-container { width: 90%; max-width: 800px; background: white; border-radius: 16px; box-shadow: 0 10px 30px rgba(0,0,0,0.1); overflow: hidden; }
    .page { display: flex; flex-direction: column; align-items: center; padding: 20px; animation: fadeIn 0.5s; }
    @keyframes fadeIn { from { opacity: 0; } to { opacity: 1; } }
    img { width: 100%; height: auto; border-radius: 8px; margin-bottom: 20px; max-height: 400px; object-fit: cover; }
    .text-container { text-align: center; }
    p { font-size: 1.2rem; line-height: 1.6; color: #333; }
    audio { margin-top: 15px; width: 100%; }
    .navigation { display: flex; justify-content: space-between; padding: 20px; width: 100%; max-width: 800px; box-sizing: border-box; }
    button { background-color: #4A90E2; color: white; border: none; padding: 10px 20px; border-radius: 5px; font-size: 1rem; cursor: pointer; transition: background-color 0.3s; }
    button:disabled { background-color: #ccc; cursor: not-allowed; }
    button:hover:not(:disabled) { background-color: #357ABD; }
    .replay { margin-top: 15px; }
    #page-counter { font-size: 1rem; color: #555; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="storybook-container">
{{- range .Pages}}
    <div class="page" id="page-{{.Number}}" style="display: {{if eq .Number 1}}flex{{else}}none{{end}};">
      <img src="{{.ImageURL}}" alt="Ilustración para la página {{.Number}}">
      <div class="text-container">
        <p>{{.Text}}</p>
{{- if $.WebAudio}}{{if .HasPCM}}
        <button class="replay" data-page="{{.Number}}">Repetir</button>
{{- end}}{{else if .AudioURL}}
        <audio controls src="{{.AudioURL}}"></audio>
{{- end}}
      </div>
    </div>
{{- end}}
  </div>
  <div class="navigation">
    <button id="prevBtn" disabled>Anterior</button>
    <span id="page-counter">Página 1 de {{.Total}}</span>
    <button id="nextBtn"{{if eq .Total 1}} disabled{{end}}>Siguiente</button>
  </div>
  <script>
    let currentPage = 1;
    const totalPages = {{.Total}};
    const pageCounter = document.getElementById('page-counter');
    const prevBtn = document.getElementById('prevBtn');
    const nextBtn = document.getElementById('nextBtn');
{{- if .WebAudio}}
    const pcmPages = {{.PCM}};
    const sampleRate = {{.Rate}};
    let audioCtx = null;
    let currentSource = null;

    function stopAudio() {
      if (currentSource) {
        try { currentSource.stop(); } catch (e) {}
        currentSource.disconnect();
        currentSource = null;
      }
    }

    function decodePCM(b64) {
      const bin = atob(b64);
      const samples = new Float32Array(Math.floor(bin.length / 2));
      for (let i = 0; i < samples.length; i++) {
        let v = bin.charCodeAt(2 * i) | (bin.charCodeAt(2 * i + 1) << 8);
        if (v >= 0x8000) v -= 0x10000;
        samples[i] = v / 32768;
      }
      return samples;
    }

    function playPage(pageNumber) {
      stopAudio();
      const b64 = pcmPages[pageNumber - 1];
      if (!b64) return;
      if (!audioCtx) audioCtx = new (window.AudioContext || window.webkitAudioContext)({ sampleRate: sampleRate });
      const samples = decodePCM(b64);
      const buffer = audioCtx.createBuffer(1, samples.length, sampleRate);
      buffer.getChannelData(0).set(samples);
      const source = audioCtx.createBufferSource();
      source.buffer = buffer;
      source.connect(audioCtx.destination);
      source.onended = () => { if (currentSource === source) currentSource = null; };
      source.start();
      currentSource = source;
    }

    document.querySelectorAll('.replay').forEach(btn => {
      btn.addEventListener('click', () => playPage(Number(btn.dataset.page)));
    });
{{- else}}

    function stopAudio() {
      document.querySelectorAll('audio').forEach(a => { a.pause(); a.currentTime = 0; });
    }

    function playPage(pageNumber) {}

    document.querySelectorAll('audio').forEach(a => {
      a.addEventListener('play', () => {
        document.querySelectorAll('audio').forEach(o => { if (o !== a) { o.pause(); o.currentTime = 0; } });
      });
    });
{{- end}}

    function showPage(pageNumber, play) {
      stopAudio();
      document.querySelectorAll('.page').forEach(p => p.style.display = 'none');
      document.getElementById('page-' + pageNumber).style.display = 'flex';
      pageCounter.textContent = 'Página ' + pageNumber + ' de ' + totalPages;
      prevBtn.disabled = pageNumber === 1;
      nextBtn.disabled = pageNumber === totalPages;
      currentPage = pageNumber;
      if (play) playPage(pageNumber);
    }

    prevBtn.addEventListener('click', () => { if (currentPage > 1) showPage(currentPage - 1, true); });
    nextBtn.addEventListener('click', () => { if (currentPage < totalPages) showPage(currentPage + 1, true); });

    showPage(1, false);
  </script>
</body>
</html>
`
