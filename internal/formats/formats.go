package formats

import (
	"slices"
	"strings"
)

// Kind is the media family a conversion belongs to.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindOther Kind = ""
)

// Target is the concrete container/codec combination passed to ffmpeg.
// An empty codec means no explicit codec flag; ffmpeg picks its default.
type Target struct {
	Container  string `json:"container"`
	AudioCodec string `json:"audio_codec,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
}

// Overrides are caller-chosen codecs for video conversions.
type Overrides struct {
	VideoCodec string
	AudioCodec string
}

// audioTargets maps audio format tokens whose container or codec differs
// from the file extension.
var audioTargets = map[string]Target{
	"m4a":  {Container: "mp4", AudioCodec: "aac"},
	"wma":  {Container: "asf", AudioCodec: "wmav2"},
	"alac": {Container: "mp4", AudioCodec: "alac"},
	"ogg":  {Container: "ogg", AudioCodec: "libvorbis"},
	"aac":  {Container: "adts", AudioCodec: "aac"},
	"opus": {Container: "opus", AudioCodec: "libopus"},
	"amr":  {Container: "amr", AudioCodec: "libopencore_amrnb"},
}

// Option lists offered by the front-end. Order is display order.
var (
	AudioFormats = []string{"mp3", "wav", "flac", "aac", "ogg", "m4a", "wma", "alac", "opus", "amr"}
	VideoFormats = []string{"mp4", "avi", "mkv", "mov", "wmv", "flv", "webm", "m4v", "3gp", "ts"}
	ImageFormats = []string{"jpg", "jpeg", "png", "tiff", "gif", "bmp"}

	// ImageInputFormats are the still-image extensions that can be read.
	// webp decodes but has no encoder.
	ImageInputFormats = []string{"jpg", "jpeg", "png", "tiff", "tif", "gif", "bmp", "webp"}

	VideoCodecs = []string{"libx264", "libx265", "libvpx", "libvpx-vp9", "mpeg4"}
	AudioCodecs = []string{"aac", "mp3", "libvorbis", "libopus"}

	// FrameRates lists selectable output frame rates. "original" keeps the source rate.
	FrameRates = []string{"original", "24", "25", "30", "50", "60", "120"}
)

// Resolve maps an audio format token to its target. Unknown tokens fall back
// to using the token as the container with no explicit codec.
func Resolve(token string) Target {
	if t, ok := audioTargets[token]; ok {
		return t
	}
	return Target{Container: token}
}

// ResolveVideo returns the target for a video conversion. The container is
// always the token; blank overrides are treated as "engine default".
func ResolveVideo(token, videoCodec, audioCodec string) Target {
	return Target{
		Container:  token,
		VideoCodec: strings.TrimSpace(videoCodec),
		AudioCodec: strings.TrimSpace(audioCodec),
	}
}

// ResolveFor dispatches on kind. Anything that is not video resolves through
// the audio table.
func ResolveFor(kind Kind, token string, ov Overrides) Target {
	if kind == KindVideo {
		return ResolveVideo(token, ov.VideoCodec, ov.AudioCodec)
	}
	return Resolve(token)
}

// KindOf classifies a format token by the option lists.
func KindOf(format string) Kind {
	f := strings.ToLower(format)
	switch {
	case slices.Contains(AudioFormats, f):
		return KindAudio
	case slices.Contains(VideoFormats, f):
		return KindVideo
	case slices.Contains(ImageInputFormats, f):
		return KindImage
	default:
		return KindOther
	}
}

// ParseKind converts a user-supplied kind name.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAudio:
		return KindAudio, true
	case KindVideo:
		return KindVideo, true
	case KindImage:
		return KindImage, true
	}
	return KindOther, false
}
