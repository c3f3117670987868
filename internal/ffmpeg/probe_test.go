package ffmpeg

import (
	"context"
	"testing"
	"time"
)

const sampleProbeJSON = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720},
    {"codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2},
    {"codec_type": "audio", "codec_name": "ac3", "sample_rate": "44100", "channels": 6}
  ],
  "format": {
    "filename": "clip.mp4",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "10.500000",
    "size": "1048576",
    "bit_rate": "798915"
  }
}`

func TestParseProbeOutput(t *testing.T) {
	result, err := parseProbeOutput("clip.mp4", []byte(sampleProbeJSON))
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}

	if result.Duration != 10500*time.Millisecond {
		t.Errorf("Duration = %v, want 10.5s", result.Duration)
	}
	if result.Size != 1048576 {
		t.Errorf("Size = %d", result.Size)
	}
	if result.VideoCodec != "h264" || result.Width != 1280 || result.Height != 720 {
		t.Errorf("video stream = %s %dx%d", result.VideoCodec, result.Width, result.Height)
	}
	// First audio stream wins
	if result.AudioCodec != "aac" || result.SampleRate != 48000 || result.Channels != 2 {
		t.Errorf("audio stream = %s %dHz %dch", result.AudioCodec, result.SampleRate, result.Channels)
	}
}

func TestParseProbeOutputInvalid(t *testing.T) {
	if _, err := parseProbeOutput("x", []byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestProbeNonExistent(t *testing.T) {
	requireFFmpeg(t)

	prober := NewProber("ffprobe")
	if _, err := prober.Probe(context.Background(), "/nonexistent/file.wav"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestDurationOfGeneratedTone(t *testing.T) {
	requireFFmpeg(t)
	input := generateTone(t, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := NewProber("ffprobe").Duration(ctx, input)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d < 1900*time.Millisecond || d > 2100*time.Millisecond {
		t.Errorf("expected duration ~2s, got %v", d)
	}
}
