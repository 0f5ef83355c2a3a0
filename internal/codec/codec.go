// Package codec identifies the codecs named in HLS CODECS attributes and
// reports which of them the player can demux.
package codec

import "strings"

// Video represents a video codec.
type Video string

// Video codec constants.
const (
	VideoH264  Video = "h264"
	VideoH265  Video = "h265"
	VideoVP9   Video = "vp9"
	VideoAV1   Video = "av1"
	VideoMPEG1 Video = "mpeg1"
	VideoMPEG2 Video = "mpeg2"
	VideoMPEG4 Video = "mpeg4"
)

// Audio represents an audio codec.
type Audio string

// Audio codec constants.
const (
	AudioAAC    Audio = "aac"
	AudioMP3    Audio = "mp3"
	AudioAC3    Audio = "ac3"
	AudioEAC3   Audio = "eac3"
	AudioOpus   Audio = "opus"
	AudioFLAC   Audio = "flac"
	AudioDTS    Audio = "dts"
	AudioVorbis Audio = "vorbis"
)

// Kind says whether a codec carries video or audio.
type Kind int

const (
	KindUnknown Kind = iota
	KindVideo
	KindAudio
)

// videoAliases maps lower-case names and RFC 6381 sample entries to codecs.
var videoAliases = map[string]Video{
	"h264": VideoH264, "avc": VideoH264, "avc1": VideoH264, "avc3": VideoH264,
	"h265": VideoH265, "hevc": VideoH265, "hev1": VideoH265, "hvc1": VideoH265,
	"vp9": VideoVP9, "vp09": VideoVP9,
	"av1": VideoAV1, "av01": VideoAV1,
	"mpeg1": VideoMPEG1, "mp1v": VideoMPEG1,
	"mpeg2": VideoMPEG2, "mp2v": VideoMPEG2,
	"mpeg4": VideoMPEG4, "mp4v": VideoMPEG4,
}

var audioAliases = map[string]Audio{
	"aac": AudioAAC, "mp4a": AudioAAC,
	"mp3": AudioMP3, ".mp3": AudioMP3,
	"ac3": AudioAC3, "ac-3": AudioAC3,
	"eac3": AudioEAC3, "ec-3": AudioEAC3,
	"opus": AudioOpus, "flac": AudioFLAC,
	"dts": AudioDTS, "dtsc": AudioDTS,
	"vorbis": AudioVorbis,
}

// ParseVideo parses a codec name or sample entry to a Video codec.
func ParseVideo(s string) (Video, bool) {
	v, ok := videoAliases[baseName(s)]
	return v, ok
}

// ParseAudio parses a codec name or sample entry to an Audio codec.
func ParseAudio(s string) (Audio, bool) {
	a, ok := audioAliases[baseName(s)]
	return a, ok
}

// baseName strips profile and level suffixes: "avc1.64001f" -> "avc1",
// "mp4a.40.2" -> "mp4a", "mp4a.40.34" -> ".mp3".
func baseName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	// MPEG-1 Layer III signalled through the MPEG-4 object type.
	if s == "mp4a.40.34" || s == "mp4a.6b" || s == "mp4a.69" {
		return ".mp3"
	}
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i]
	}
	return s
}

// Identify returns the canonical name and kind of an HLS codec string.
// Unknown codecs are returned unchanged with KindUnknown.
func Identify(s string) (string, Kind) {
	if v, ok := ParseVideo(s); ok {
		return string(v), KindVideo
	}
	if a, ok := ParseAudio(s); ok {
		return string(a), KindAudio
	}
	return s, KindUnknown
}

// Normalize converts an HLS codec string to its canonical name, or returns
// it unchanged if unrecognised.
func Normalize(s string) string {
	name, _ := Identify(s)
	return name
}

// Split separates a CODECS list into video and audio codecs. Unknown entries
// are returned separately.
func Split(codecs []string) (video []Video, audio []Audio, unknown []string) {
	for _, c := range codecs {
		if v, ok := ParseVideo(c); ok {
			video = append(video, v)
			continue
		}
		if a, ok := ParseAudio(c); ok {
			audio = append(audio, a)
			continue
		}
		unknown = append(unknown, c)
	}
	return video, audio, unknown
}

// AllSupported reports whether every codec in the list can be demuxed. An
// empty list is supported: HLS makes CODECS optional.
func AllSupported(codecs []string) bool {
	for _, c := range codecs {
		if !Supported(c) {
			return false
		}
	}
	return true
}
