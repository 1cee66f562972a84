package media

// MaybeAudio is the result of a remote fetch. The zero value is absent, so a
// caller has to go through Get to reach the audio.
type MaybeAudio struct {
	audio  CanonicalAudio
	ok     bool
	reason string
}

func SomeAudio(audio CanonicalAudio) MaybeAudio {
	return MaybeAudio{audio: audio, ok: true}
}

// NoAudio records why nothing was fetched.
func NoAudio(reason string) MaybeAudio {
	return MaybeAudio{reason: reason}
}

func (m MaybeAudio) Get() (CanonicalAudio, bool) {
	return m.audio, m.ok
}

func (m MaybeAudio) Present() bool {
	return m.ok
}

// Reason is empty when audio is present.
func (m MaybeAudio) Reason() string {
	if m.ok {
		return ""
	}
	if m.reason == "" {
		return "no audio fetched"
	}
	return m.reason
}
