package codec

import (
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
)

// demuxable lists the codecs the MPEG-TS demuxer has a codec type for.
var demuxable = map[string]mpegts.Codec{
	string(VideoH264):  &mpegts.CodecH264{},
	string(VideoH265):  &mpegts.CodecH265{},
	string(VideoMPEG1): &mpegts.CodecMPEG1Video{},
	string(VideoMPEG2): &mpegts.CodecMPEG1Video{},
	string(VideoMPEG4): &mpegts.CodecMPEG4Video{},
	string(AudioAAC):   &mpegts.CodecMPEG4Audio{},
	string(AudioMP3):   &mpegts.CodecMPEG1Audio{},
	string(AudioAC3):   &mpegts.CodecAC3{},
	string(AudioEAC3):  &mpegts.CodecEAC3{},
	string(AudioOpus):  &mpegts.CodecOpus{},
}

// Supported reports whether the player can demux the given codec.
func Supported(s string) bool {
	c, ok := demuxable[Normalize(s)]
	if !ok {
		return false
	}
	_, unsupported := c.(*mpegts.CodecUnsupported)
	return !unsupported
}

// SupportedCodecs returns the canonical names of every demuxable codec.
func SupportedCodecs() []string {
	out := make([]string, 0, len(demuxable))
	for name := range demuxable {
		if Supported(name) {
			out = append(out, name)
		}
	}
	return out
}
