package sdp

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"

	"webcaster/internal/core/domain"
)

// Enhancer builds the default offer transform: it injects the configured
// bitrate and frame rate preferences into the matching media sections of a
// local offer. Descriptions that do not parse are returned unchanged; the
// transform never fails.
func Enhancer(video domain.VideoOptions, audio domain.AudioOptions) domain.TransformFunc {
	return func(desc domain.Description) domain.Description {
		parsed := &sdp.SessionDescription{}
		if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
			return desc
		}

		for _, media := range parsed.MediaDescriptions {
			switch media.MediaName.Media {
			case "video":
				if video.Bitrate > 0 {
					setBandwidth(media, video.Bitrate)
				}
				if video.FrameRate > 0 {
					setAttribute(media, "framerate", trimFloat(video.FrameRate))
				}
			case "audio":
				if audio.Bitrate > 0 {
					setBandwidth(media, audio.Bitrate)
				}
			}
		}

		out, err := parsed.Marshal()
		if err != nil {
			return desc
		}
		return domain.Description{Type: desc.Type, SDP: string(out)}
	}
}

// setBandwidth writes both the kbps AS line and the bps TIAS line, replacing
// any existing entries of either type.
func setBandwidth(media *sdp.MediaDescription, kbps int) {
	kept := media.Bandwidth[:0]
	for _, b := range media.Bandwidth {
		if b.Type != "AS" && b.Type != "TIAS" {
			kept = append(kept, b)
		}
	}
	media.Bandwidth = append(kept,
		sdp.Bandwidth{Type: "AS", Bandwidth: uint64(kbps)},
		sdp.Bandwidth{Type: "TIAS", Bandwidth: uint64(kbps) * 1000},
	)
}

func setAttribute(media *sdp.MediaDescription, key, value string) {
	for i, attr := range media.Attributes {
		if attr.Key == key {
			media.Attributes[i].Value = value
			return
		}
	}
	media.Attributes = append(media.Attributes, sdp.Attribute{Key: key, Value: value})
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
