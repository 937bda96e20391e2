// Package attach turns user files into attachments for the live session and
// the chat model.
//
// Images and PDFs are passed through unchanged. For videos only the first
// frame is sent, extracted as JPEG by ffmpeg.
package attach

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
)

// ErrUnsupportedFileType is returned for files that are neither an image, a
// PDF nor a video.
var ErrUnsupportedFileType = errors.New("attach: unsupported file type")

// MaxFileSize is the largest file accepted.
const MaxFileSize = 20 << 20

// Loader reads attachments. The zero value uses "ffmpeg" from PATH.
type Loader struct {
	// FFmpegPath is the ffmpeg binary used for video frames.
	FFmpegPath string
}

// Load reads path and converts it into an attached file with a fresh TempID.
func (l *Loader) Load(ctx context.Context, path string) (live.AttachedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return live.AttachedFile{}, fmt.Errorf("attach: read %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return live.AttachedFile{}, fmt.Errorf("attach: %s is larger than %d bytes", path, MaxFileSize)
	}
	name := filepath.Base(path)
	mimeType := DetectMIMEType(name, data)

	switch {
	case strings.HasPrefix(mimeType, "image/"), mimeType == "application/pdf":
	case strings.HasPrefix(mimeType, "video/"):
		frame, err := l.firstFrame(ctx, path)
		if err != nil {
			return live.AttachedFile{}, err
		}
		data, mimeType = frame, "image/jpeg"
	default:
		return live.AttachedFile{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFileType, name, mimeType)
	}

	return live.AttachedFile{
		Name:     name,
		Data:     audio.EncodeBase64(data),
		MIMEType: mimeType,
		TempID:   uuid.NewString(),
	}, nil
}

// Load reads path with a zero-value [Loader].
func Load(ctx context.Context, path string) (live.AttachedFile, error) {
	var l Loader
	return l.Load(ctx, path)
}

// videoTypes covers container formats missing from the builtin MIME table.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// DetectMIMEType infers the media type from the file extension, falling back
// to content sniffing. Parameters such as charset are stripped.
func DetectMIMEType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	t := mime.TypeByExtension(ext)
	if t == "" {
		t = videoTypes[ext]
	}
	if t == "" {
		t = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}

// Decode returns the raw bytes of an attached file.
func Decode(f live.AttachedFile) ([]byte, error) {
	return audio.DecodeBase64(f.Data)
}

// frameArgs builds the ffmpeg arguments that write the first video frame of
// path to stdout as JPEG.
func frameArgs(path string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	}
}

func (l *Loader) firstFrame(ctx context.Context, path string) ([]byte, error) {
	bin := l.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, frameArgs(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("attach: extract video frame: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("attach: extract video frame: no frame produced")
	}
	return stdout.Bytes(), nil
}
