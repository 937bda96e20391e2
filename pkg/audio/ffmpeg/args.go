// Package ffmpeg implements [audio.Source] and [audio.Sink] on top of the
// ffmpeg and ffplay command-line tools: the microphone is read from ffmpeg's
// stdout as raw s16le PCM, and playback is written to ffplay's stdin.
package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
)

// echoCancelSource is the PulseAudio source created by module-echo-cancel.
const echoCancelSource = "echo-cancel-source"

// captureInput returns the ffmpeg input format and device for goos.
func captureInput(goos string, cfg audio.CaptureConfig) (format, device string, err error) {
	switch goos {
	case "linux":
		device = cfg.Device
		if device == "" {
			device = "default"
			if cfg.EchoCancellation {
				device = echoCancelSource
			}
		}
		return "pulse", device, nil
	case "darwin":
		device = cfg.Device
		if device == "" {
			device = "0"
		}
		return "avfoundation", ":" + device, nil
	case "windows":
		if cfg.Device == "" {
			return "", "", fmt.Errorf("%w: windows capture requires live.input_device (a dshow device name)", audio.ErrDeviceUnavailable)
		}
		return "dshow", "audio=" + cfg.Device, nil
	default:
		return "", "", fmt.Errorf("%w: microphone capture is not implemented for %s", audio.ErrDeviceUnavailable, goos)
	}
}

// filterChain maps voice-processing flags to an ffmpeg -af chain.
func filterChain(cfg audio.CaptureConfig) string {
	var filters []string
	if cfg.NoiseSuppression {
		filters = append(filters, "highpass=f=80", "afftdn=nf=-25")
	}
	if cfg.AutoGainControl {
		filters = append(filters, "dynaudnorm=f=150:g=15")
	}
	return strings.Join(filters, ",")
}

// captureArgs builds the ffmpeg command line for microphone capture.
func captureArgs(goos string, cfg audio.CaptureConfig) ([]string, error) {
	cfg = cfg.WithDefaults()
	format, device, err := captureInput(goos, cfg)
	if err != nil {
		return nil, err
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", format, "-i", device,
		"-ac", "1", "-ar", strconv.Itoa(cfg.SampleRate),
	}
	if chain := filterChain(cfg); chain != "" {
		args = append(args, "-af", chain)
	}
	return append(args, "-f", "s16le", "-"), nil
}

// playbackArgs builds the ffplay command line for raw PCM playback.
func playbackArgs(sampleRate int) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	}
}

// classifyStderr maps ffmpeg's diagnostic output to the capture error
// taxonomy. It returns nil when nothing recognisable was printed.
func classifyStderr(stderr string) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return nil
	}
	lower := strings.ToLower(msg)
	last := msg
	if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
		last = msg[i+1:]
	}
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "operation not permitted"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "access denied"):
		return fmt.Errorf("%w: %s", audio.ErrPermissionDenied, last)
	case strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "no such device"),
		strings.Contains(lower, "no such entity"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "device or resource busy"),
		strings.Contains(lower, "input/output error"),
		strings.Contains(lower, "unknown input format"),
		strings.Contains(lower, "could not find audio only device"):
		return fmt.Errorf("%w: %s", audio.ErrDeviceUnavailable, last)
	}
	return errors.New("ffmpeg: " + last)
}
