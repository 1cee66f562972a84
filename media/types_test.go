package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySource(t *testing.T) {
	tests := []struct {
		source string
		want   SourceKind
	}{
		{"https://www.youtube.com/watch?v=abc", SourceRemoteURL},
		{"http://example.com/video", SourceRemoteURL},
		{"  https://youtu.be/abc  ", SourceRemoteURL},
		{"/home/me/speech.mp3", SourceLocalFile},
		{"clip.mov", SourceLocalFile},
		{"C:\\videos\\clip.mov", SourceLocalFile},
		{"ftp://example.com/a.mp3", SourceLocalFile},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifySource(tt.source), tt.source)
	}
}

func TestStem(t *testing.T) {
	assert.Equal(t, "speech", Stem("/a/b/speech.mp3"))
	assert.Equal(t, "clip.final", Stem("clip.final.mov"))
	assert.Equal(t, "clip", CanonicalAudio{Path: "/x/clip.wav"}.Stem())
}

func TestParseModelTier(t *testing.T) {
	for _, tier := range Tiers() {
		got, err := ParseModelTier(" " + string(tier) + " ")
		require.NoError(t, err)
		assert.Equal(t, tier, got)
		assert.Equal(t, string(tier), got.ModelID())
		assert.NotEmpty(t, got.Describe())
	}

	got, err := ParseModelTier("LARGE")
	require.NoError(t, err)
	assert.Equal(t, TierLarge, got)

	_, err = ParseModelTier("huge")
	assert.Error(t, err)
	assert.False(t, ModelTier("").Valid())
	assert.Equal(t, TierSmall, DefaultTier)
}

func TestMaybeAudio(t *testing.T) {
	var zero MaybeAudio
	_, ok := zero.Get()
	assert.False(t, ok)
	assert.NotEmpty(t, zero.Reason())

	none := NoAudio("no playable stream")
	assert.False(t, none.Present())
	assert.Equal(t, "no playable stream", none.Reason())

	some := SomeAudio(CanonicalAudio{Path: "/tmp/a.mp3"})
	audio, ok := some.Get()
	require.True(t, ok)
	assert.Equal(t, "/tmp/a.mp3", audio.Path)
	assert.Empty(t, some.Reason())
}
