package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"mime"
	"strconv"
	"strings"
)

// EncodeBase64 returns the standard base64 encoding of b.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes standard base64 text. Failures wrap [ErrDecodeFailure].
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecodeFailure, err)
	}
	return b, nil
}

// FloatToPCM16 converts normalised float samples to little-endian int16 PCM.
// Each sample is scaled by 32768, rounded, and clamped to [-32768, 32767] so
// loud input saturates instead of wrapping around.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat converts little-endian int16 PCM to float samples in [-1, 1).
// An odd byte count wraps [ErrDecodeFailure].
func PCM16ToFloat(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: odd PCM byte count %d", ErrDecodeFailure, len(pcm))
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out, nil
}

// ParsePCMRate extracts the sample rate from a PCM MIME type such as
// "audio/pcm;rate=24000". When the type carries no rate parameter,
// defaultRate is returned. Non-PCM types wrap [ErrDecodeFailure].
func ParsePCMRate(mimeType string, defaultRate int) (int, error) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0, fmt.Errorf("%w: mime %q: %v", ErrDecodeFailure, mimeType, err)
	}
	if mediaType != "audio/pcm" && mediaType != "audio/l16" {
		return 0, fmt.Errorf("%w: unsupported mime %q", ErrDecodeFailure, mimeType)
	}
	raw, ok := params["rate"]
	if !ok {
		return defaultRate, nil
	}
	rate, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("%w: bad rate %q", ErrDecodeFailure, raw)
	}
	return rate, nil
}

// EncodeFrame converts a captured frame into its wire representation.
func EncodeFrame(f AudioFrame) WireChunk {
	return WireChunk{
		Data:     EncodeBase64(FloatToPCM16(f.Samples)),
		MIMEType: PCMMIMEType(f.SampleRate),
	}
}

// DecodeChunk converts a wire chunk back into float samples. defaultRate is
// used when the MIME type carries no rate parameter.
func DecodeChunk(c WireChunk, defaultRate int) (AudioFrame, error) {
	rate, err := ParsePCMRate(c.MIMEType, defaultRate)
	if err != nil {
		return AudioFrame{}, err
	}
	pcm, err := DecodeBase64(c.Data)
	if err != nil {
		return AudioFrame{}, err
	}
	return DecodePCM(pcm, rate)
}

// DecodePCM wraps raw little-endian int16 PCM at rate Hz into a frame.
func DecodePCM(pcm []byte, rate int) (AudioFrame, error) {
	samples, err := PCM16ToFloat(pcm)
	if err != nil {
		return AudioFrame{}, err
	}
	return AudioFrame{Samples: samples, SampleRate: rate}, nil
}
