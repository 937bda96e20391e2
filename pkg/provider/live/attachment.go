package live

import "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"

// AttachedFile is a user file sent to a live session as realtime input.
type AttachedFile struct {
	Name     string
	Data     string // base64
	MIMEType string
	TempID   string
}

// Chunk returns the file as a realtime input chunk.
func (f AttachedFile) Chunk() audio.WireChunk {
	return audio.WireChunk{Data: f.Data, MIMEType: f.MIMEType}
}
