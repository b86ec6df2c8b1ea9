package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseOptions() SessionOptions {
	return SessionOptions{
		SignalURL:       "wss://media.example.com/webrtc-session.json",
		ApplicationName: "live",
		StreamName:      "studio",
		Constraints:     MediaConstraints{Audio: true, Video: true},
		VideoOptions:    VideoOptions{Bitrate: 500, CodecName: "h264", FrameRate: 30},
		AudioOptions:    AudioOptions{CodecName: "opus", Bitrate: 64},
		ICEServers:      []ICEServer{{URLs: []string{"stun:stun.example.com"}}},
		UserData:        map[string]string{"tenant": "default"},
	}
}

func TestApplySingleFieldLeavesRestUntouched(t *testing.T) {
	opts := baseOptions()
	name := "other-stream"

	opts.Apply(&OptionsOverlay{StreamName: &name})

	expected := baseOptions()
	expected.StreamName = name
	assert.Equal(t, expected, opts)
}

func TestApplyNilOverlayIsNoOp(t *testing.T) {
	opts := baseOptions()
	opts.Apply(nil)
	assert.Equal(t, baseOptions(), opts)
}

func TestApplyUserDataPresenceGovernsOverwrite(t *testing.T) {
	opts := baseOptions()

	// Absent user data never erases the configured payload.
	opts.Apply(&OptionsOverlay{})
	require.NotNil(t, opts.UserData)

	// An explicitly supplied nil payload does overwrite.
	var empty interface{}
	opts.Apply(&OptionsOverlay{UserData: &empty})
	assert.Nil(t, opts.UserData)
}

func TestApplyReplacesCompositeFieldsWholesale(t *testing.T) {
	opts := baseOptions()

	opts.Apply(&OptionsOverlay{
		Constraints:  &MediaConstraints{Audio: true},
		VideoOptions: &VideoOptions{Bitrate: 1200},
	})

	assert.Equal(t, MediaConstraints{Audio: true}, opts.Constraints)
	assert.Equal(t, VideoOptions{Bitrate: 1200}, opts.VideoOptions)
	assert.Equal(t, baseOptions().AudioOptions, opts.AudioOptions)
}

func TestApplyKeepsTransformHookWhenAbsent(t *testing.T) {
	opts := baseOptions()
	hook := func(offer Description, _ TransformFunc) Description { return offer }
	opts.Apply(&OptionsOverlay{TransformOffer: hook})
	require.NotNil(t, opts.TransformOffer)

	name := "renamed"
	opts.Apply(&OptionsOverlay{StreamName: &name})
	assert.NotNil(t, opts.TransformOffer)
}
