package story

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can react and users get a distinct message.
type Kind string

const (
	KindConfig     Kind = "config"
	KindValidation Kind = "validation"
	KindUpstream   Kind = "upstream"
	KindParse      Kind = "parse"
	KindExport     Kind = "export"
)

var (
	ErrMissingCredential    = errors.New("missing credential")
	ErrEmptyIdea            = errors.New("story idea is empty")
	ErrPageCount            = errors.New("page count must be even and between 2 and 24")
	ErrAgeRange             = errors.New("unknown age range")
	ErrImageQuality         = errors.New("unknown image quality")
	ErrInvalidStory         = errors.New("the AI could not produce a valid story structure")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrNoCover              = errors.New("at least one image is required for the cover")
	ErrNoAudio              = errors.New("no audio to export")
	ErrAudiobookUnsupported = errors.New("audiobook export requires raw PCM narration")
	ErrNotReady             = errors.New("story is not ready for export")
)

// Error is a classified failure. Provider is set for upstream errors.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ConfigError marks a missing or invalid credential or setting.
func ConfigError(err error) error { return &Error{Kind: KindConfig, Err: err} }

// ValidationError marks a bad request caught before the pipeline starts.
func ValidationError(err error) error { return &Error{Kind: KindValidation, Err: err} }

// UpstreamError attributes a remote failure to a provider.
func UpstreamError(provider string, err error) error {
	return &Error{Kind: KindUpstream, Provider: provider, Err: err}
}

// ParseError marks structured output that could not be decoded.
func ParseError(err error) error { return &Error{Kind: KindParse, Err: err} }

// ExportError marks a missing export prerequisite.
func ExportError(err error) error { return &Error{Kind: KindExport, Err: err} }

// KindOf returns the kind of the first classified error in the chain, or "".
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// UserMessage converts err into a localized message suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if !errors.As(err, &se) {
		return "Ocurrió un error: " + err.Error()
	}
	switch se.Kind {
	case KindConfig:
		return "La clave de API no es válida o no está configurada."
	case KindValidation:
		switch {
		case errors.Is(err, ErrEmptyIdea):
			return "Por favor, introduce una idea para el cuento."
		case errors.Is(err, ErrPageCount):
			return "El número de páginas debe ser par y estar entre 2 y 24."
		case errors.Is(err, ErrAgeRange):
			return "Por favor, elige un rango de edad válido."
		default:
			return "La solicitud no es válida: " + se.Err.Error()
		}
	case KindParse:
		return "La IA no pudo generar la estructura del cuento. Por favor, inténtalo de nuevo."
	case KindUpstream:
		if se.Provider != "" {
			return fmt.Sprintf("El servicio %s falló: %v", se.Provider, se.Err)
		}
		return "Ocurrió un error: " + se.Err.Error()
	case KindExport:
		switch {
		case errors.Is(err, ErrNoCover):
			return "Se necesita al menos una imagen para crear la portada del EPUB."
		case errors.Is(err, ErrNoAudio):
			return "No hay audio para exportar."
		case errors.Is(err, ErrAudiobookUnsupported):
			return "La exportación de audiolibro no está disponible con la narración actual."
		case errors.Is(err, ErrNotReady):
			return "El cuento todavía no está listo para exportar."
		default:
			return "No se pudo exportar el cuento: " + se.Err.Error()
		}
	}
	return "Ocurrió un error: " + err.Error()
}
