package speech_to_text

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/go-audio/audio"
)

type sttImpl struct {
	model whisper.Model
}

type Config struct {
	Model whisper.Model
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Model == nil {
		return nil, fmt.Errorf("model is nil")
	}

	return &sttImpl{
		model: cfg.Model,
	}, nil
}

func (stt *sttImpl) Process(wavBuffer *audio.IntBuffer) ([]whisper.Segment, error) {
	data, err := samplesForModel(wavBuffer)
	if err != nil {
		return nil, err
	}

	// Create processing context
	context, err := stt.model.NewContext()
	if err != nil {
		return nil, err
	}

	err = context.Process(data, nil)
	if err != nil {
		return nil, err
	}

	return outputSegments(context)
}

// Transcribe returns the take's text normalized the way the operator's
// transcripts are stored.
func (stt *sttImpl) Transcribe(wavBuffer *audio.IntBuffer) (string, error) {
	segments, err := stt.Process(wavBuffer)
	if err != nil {
		return "", err
	}

	return joinSegments(segments), nil
}

// samplesForModel converts 16-bit PCM to the float range whisper expects.
func samplesForModel(wavBuffer *audio.IntBuffer) ([]float32, error) {
	if wavBuffer == nil || wavBuffer.Format == nil {
		return nil, fmt.Errorf("wav buffer is nil")
	}

	if wavBuffer.Format.SampleRate != whisper.SampleRate {
		return nil, fmt.Errorf("unsupported sample rate %d, want %d", wavBuffer.Format.SampleRate, whisper.SampleRate)
	}

	if wavBuffer.Format.NumChannels != 1 {
		return nil, fmt.Errorf("unsupported channel count %d, want mono", wavBuffer.Format.NumChannels)
	}

	data := make([]float32, len(wavBuffer.Data))
	for i, sample := range wavBuffer.Data {
		data[i] = float32(sample) / (math.MaxInt16 + 1)
	}

	return data, nil
}

func outputSegments(context whisper.Context) ([]whisper.Segment, error) {
	seenText := make(map[string]bool)

	segments := make([]whisper.Segment, 0)

	for {
		segment, err := context.NextSegment()
		if err == io.EOF {
			return segments, nil
		} else if err != nil {
			return nil, err
		}

		if keepSegment(segment.Text, seenText) {
			segments = append(segments, segment)
		}
	}
}

// keepSegment drops bracketed annotations like "[BLANK_AUDIO]" or "(music)"
// and text already seen.
func keepSegment(text string, seenText map[string]bool) bool {
	text = strings.TrimSpace(text)

	if len(text) == 0 {
		return false
	}

	if text[0] == '(' || text[0] == '[' || text[len(text)-1] == ')' || text[len(text)-1] == ']' {
		return false
	}

	if seenText[text] {
		return false
	}

	seenText[text] = true

	return true
}

func joinSegments(segments []whisper.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		parts = append(parts, strings.TrimSpace(segment.Text))
	}

	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
}
