// Package audio holds the small audio helpers shared by the vendor clients and the
// call controller: format to MIME mapping, container sniffing and base64 transport.
package audio

import (
	"bytes"
	"encoding/base64"
	"strings"
)

const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
	FormatPCM = "pcm"

	ContentTypeOctetStream = "application/octet-stream"
)

var contentTypes = map[string]string{
	FormatWAV: "audio/wav",
	FormatMP3: "audio/mpeg",
	FormatPCM: "audio/pcm",
}

// ContentType returns the MIME type for a given audio format.
func ContentType(format string) string {
	if ct, ok := contentTypes[strings.ToLower(strings.TrimSpace(format))]; ok {
		return ct
	}
	return ContentTypeOctetStream
}

// Clip is a synthesized or downloaded audio payload together with its container format.
type Clip struct {
	Data   []byte `json:"data"`
	Format string `json:"format"`
}

// ContentType returns the MIME type the clip should be served with.
func (c Clip) ContentType() string {
	return ContentType(c.Format)
}

// Empty reports whether the clip carries no audio.
func (c Clip) Empty() bool {
	return len(c.Data) == 0
}

// DetectFormat sniffs the container from the leading bytes and returns "" when unknown.
func DetectFormat(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync
		return FormatMP3
	}
	return ""
}

// Base64ToBytes decodes standard base64, the transport vendors use for audio.
func Base64ToBytes(base64String string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64String)
}
