package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/provider/stt"
	"github.com/MrWong99/newscast/pkg/provider/tts"
	"github.com/MrWong99/newscast/pkg/provider/vad"
)

// AudioFileName is the download name of the synthesized broadcast.
const AudioFileName = "newscast_summary.wav"

// Download is a generated artifact ready to be served as a file.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// Transcript returns the broadcast script as a text file named after the
// current language, e.g. newscast_transcript_hindi.txt.
func (s *Shell) Transcript() (Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary == "" {
		return Download{}, fmt.Errorf("%w: no transcript generated", ErrNotFound)
	}
	return Download{
		Name:        "newscast_transcript_" + strings.ToLower(string(s.language)) + ".txt",
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte(s.summary),
	}, nil
}

// AudioWAV returns the synthesized broadcast as a WAV file.
func (s *Shell) AudioWAV() (Download, error) {
	s.mu.Lock()
	asset := s.asset
	s.mu.Unlock()

	if asset == nil {
		return Download{}, fmt.Errorf("%w: no audio generated", ErrNotFound)
	}
	return Download{
		Name:        AudioFileName,
		ContentType: "audio/wav",
		Data:        audio.EncodeWAV(asset),
	}, nil
}

// Preview is a short voice sample together with the voice's defaults.
type Preview struct {
	WAV   []byte
	Speed float64
	Pitch int
}

// Preview synthesizes a short line with the voice so the user can audition
// it. Indian personas use a different greeting. Backend failures wrap
// [ErrGeneration].
func (s *Shell) Preview(ctx context.Context, voiceID string) (Preview, error) {
	preset, ok := s.voices.Get(voiceID)
	if !ok {
		return Preview{}, fmt.Errorf("studio: preview: %w: %q", voice.ErrUnknownVoice, voiceID)
	}

	speech, err := s.providers.TTS.Synthesize(ctx, PreviewText(preset.Style), tts.VoiceProfile{
		ID:   preset.BaseVoice,
		Name: preset.Name,
	})
	if err != nil {
		return Preview{}, fmt.Errorf("%w: preview %s: %w", ErrGeneration, preset.ID, err)
	}
	if speech == nil || len(speech.PCM) == 0 {
		return Preview{}, fmt.Errorf("%w: preview %s: %w", ErrGeneration, preset.ID, tts.ErrEmptyAudio)
	}
	asset, err := s.decodeSpeech(speech)
	if err != nil {
		return Preview{}, fmt.Errorf("%w: preview %s: %w", ErrGeneration, preset.ID, err)
	}
	return Preview{
		WAV:   audio.EncodeWAV(asset),
		Speed: preset.DefaultSpeed,
		Pitch: preset.DefaultPitch,
	}, nil
}

// Dictate transcribes an uploaded clip into article text in the current
// language. The clip may be WAV, MP3 or OGG Vorbis; it is converted to
// 16 kHz mono and trimmed to the spoken part before transcription.
//
// Dictation is disabled without an STT provider and returns [ErrPermission].
// Undecodable audio returns an error wrapping [audio.ErrDecode], a silent
// clip one wrapping [vad.ErrNoSpeech], and backend failures wrap
// [ErrGeneration].
func (s *Shell) Dictate(ctx context.Context, filename string, data []byte) (string, error) {
	if s.providers.STT == nil {
		return "", fmt.Errorf("%w: dictation is not configured", ErrPermission)
	}

	s.mu.Lock()
	lang := s.language
	s.mu.Unlock()

	clip, err := PrepareClip(s.providers.VAD, filename, data)
	if err != nil {
		return "", fmt.Errorf("studio: dictate: %w", err)
	}

	t, err := s.providers.STT.Transcribe(ctx, stt.Clip{WAV: clip, Language: lang.DictationTag()})
	if err != nil {
		return "", fmt.Errorf("%w: dictate: %w", ErrGeneration, err)
	}
	if t == nil {
		return "", nil
	}
	return strings.TrimSpace(t.Text), nil
}

// PrepareClip decodes an uploaded audio file, converts it to 16 kHz mono
// and, when engine is non-nil, trims leading and trailing silence. The
// result is WAV encoded.
func PrepareClip(engine vad.Engine, filename string, data []byte) ([]byte, error) {
	asset, err := audio.DecodeFile(filename, data)
	if err != nil {
		return nil, err
	}

	target := audio.Format{SampleRate: stt.ClipSampleRate, Channels: 1}
	conv := audio.Converter{Target: target}
	frame := conv.Convert(audio.Frame{Data: audio.EncodePCM16(asset), Format: asset.Format()})
	pcm := frame.Data

	if engine != nil {
		pcm, err = vad.Trim(engine, vad.DefaultTrimConfig(target.SampleRate), pcm)
		if err != nil {
			return nil, err
		}
	}

	clip, err := audio.DecodePCM16(pcm, target.SampleRate, target.Channels)
	if err != nil {
		return nil, err
	}
	return audio.EncodeWAV(clip), nil
}

// IsClientError reports whether err was caused by the request rather than by
// a backend, so the API can answer 4xx instead of 5xx.
func IsClientError(err error) bool {
	return errors.Is(err, audio.ErrDecode) ||
		errors.Is(err, audio.ErrUnsupportedContainer) ||
		errors.Is(err, vad.ErrNoSpeech)
}
