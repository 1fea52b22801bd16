// Package wav builds and reads the minimal RIFF/WAVE container used for narration audio.
//
// Narration services return raw 16-bit signed little-endian PCM, mono, at 24 kHz.
// Encode wraps such a payload in the canonical 44-byte header so it can be played
// or stored as a standalone file.
package wav

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
	HeaderSize    = 44

	formatPCM  = 1
	fmtChunkSz = 16
)

// ErrInvalid is returned when a buffer is not a WAV file this package can read.
var ErrInvalid = errors.New("wav: invalid container")

// Header mirrors the fixed 44-byte layout.
type Header struct {
	ChunkSize     uint32
	FmtChunkSize  uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// NewHeader returns the header for a PCM body of dataSize bytes.
func NewHeader(dataSize int) Header {
	blockAlign := Channels * BitsPerSample / 8
	return Header{
		ChunkSize:     uint32(36 + dataSize),
		FmtChunkSize:  fmtChunkSz,
		AudioFormat:   formatPCM,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      uint32(SampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: BitsPerSample,
		DataSize:      uint32(dataSize),
	}
}

// Bytes serializes the header, all fields little-endian.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], h.ChunkSize)
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], h.FmtChunkSize)
	binary.LittleEndian.PutUint16(b[20:22], h.AudioFormat)
	binary.LittleEndian.PutUint16(b[22:24], h.NumChannels)
	binary.LittleEndian.PutUint32(b[24:28], h.SampleRate)
	binary.LittleEndian.PutUint32(b[28:32], h.ByteRate)
	binary.LittleEndian.PutUint16(b[32:34], h.BlockAlign)
	binary.LittleEndian.PutUint16(b[34:36], h.BitsPerSample)
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], h.DataSize)
	return b
}

// Encode wraps raw PCM in a WAV container.
func Encode(pcm []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(pcm))
	out = append(out, NewHeader(len(pcm)).Bytes()...)
	return append(out, pcm...)
}

// EncodeBase64 decodes a base64 PCM payload and wraps it in a WAV container.
func EncodeBase64(pcmB64 string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(pcmB64)
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	return Encode(pcm), nil
}

// Concat decodes every base64 PCM segment in order and returns the joined body.
// Empty segments are skipped.
func Concat(segments []string) ([]byte, error) {
	var buf bytes.Buffer
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(seg)
		if err != nil {
			return nil, fmt.Errorf("decode segment %d: %w", i, err)
		}
		buf.Write(pcm)
	}
	return buf.Bytes(), nil
}

// ParseHeader reads the fixed header from the start of a WAV buffer.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrInvalid, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: bad chunk markers", ErrInvalid)
	}
	return Header{
		ChunkSize:     binary.LittleEndian.Uint32(data[4:8]),
		FmtChunkSize:  binary.LittleEndian.Uint32(data[16:20]),
		AudioFormat:   binary.LittleEndian.Uint16(data[20:22]),
		NumChannels:   binary.LittleEndian.Uint16(data[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(data[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(data[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(data[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(data[34:36]),
		DataSize:      binary.LittleEndian.Uint32(data[40:44]),
	}, nil
}

// Data returns the data subchunk of a WAV buffer produced by Encode.
func Data(data []byte) ([]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	end := HeaderSize + int(h.DataSize)
	if end > len(data) {
		return nil, fmt.Errorf("%w: data size %d exceeds buffer", ErrInvalid, h.DataSize)
	}
	return data[HeaderSize:end], nil
}

// Duration returns the playback length in milliseconds of a PCM body.
func Duration(pcmLen int) int {
	return pcmLen * 1000 / (SampleRate * Channels * BitsPerSample / 8)
}
