package session

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	goaudio "github.com/go-audio/audio"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-dataset-recorder/audio"
	"speech-dataset-recorder/data_set"
)

const testPath = "/corpus"

type fakeAudio struct {
	samples    []int16
	recordErr  error
	recordings int
	plays      int
	streamOpen bool
}

func (f *fakeAudio) NewClip() (*audio.Clip, error) {
	return audio.NewClip(16000, 1)
}

func (f *fakeAudio) Record(clip *audio.Clip, hold func() error) (err error) {
	f.recordings++
	f.streamOpen = true

	defer func() {
		f.streamOpen = false

		finishErr := clip.Finish()
		if err == nil {
			err = finishErr
		}
	}()

	if f.recordErr != nil {
		return f.recordErr
	}

	err = clip.WriteSamples(f.samples)
	if err != nil {
		return err
	}

	return hold()
}

func (f *fakeAudio) Play(clip *audio.Clip) error {
	if f.streamOpen {
		return errors.New("playing while recording")
	}

	f.plays++

	return nil
}

func (f *fakeAudio) Close() error {
	return nil
}

type fakeVAD struct {
	heard bool
}

func (f *fakeVAD) Flux(samples []int16) float64 {
	return 0
}

func (f *fakeVAD) HeardSpeech(samples []int) bool {
	return f.heard
}

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Process(wavBuffer *goaudio.IntBuffer) ([]whisper.Segment, error) {
	return []whisper.Segment{{Text: f.text}}, f.err
}

func (f *fakeSTT) Transcribe(wavBuffer *goaudio.IntBuffer) (string, error) {
	return f.text, f.err
}

type harness struct {
	fileSys afero.Fs
	audio   *fakeAudio
	dataSet data_set.Interface
	out     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	fileSys := afero.NewMemMapFs()

	dataSet, err := data_set.New(&data_set.Config{FileSys: fileSys, Path: testPath})
	require.NoError(t, err)

	return &harness{
		fileSys: fileSys,
		audio:   &fakeAudio{samples: make([]int16, 1600)},
		dataSet: dataSet,
		out:     &bytes.Buffer{},
	}
}

func (h *harness) run(t *testing.T, input string, cfg Config) error {
	t.Helper()

	cfg.Audio = h.audio
	cfg.DataSet = h.dataSet
	cfg.In = strings.NewReader(input)
	cfg.Out = h.out

	s, err := New(&cfg)
	require.NoError(t, err)

	return s.Run()
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{DataSet: newHarness(t).dataSet, In: strings.NewReader(""), Out: &bytes.Buffer{}})
	assert.Error(t, err)

	_, err = New(&Config{Audio: &fakeAudio{}, In: strings.NewReader(""), Out: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Run("saves a take with a normalized transcript", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\n  Hello, World!  \n", Config{})
		require.NoError(t, err)

		records := h.dataSet.Records()
		require.Len(t, records, 1)
		assert.Equal(t, data_set.Record{
			WavFilename: "records/hello_world-0.wav",
			WavFilesize: 44 + 2*1600,
			Transcript:  "hello, world!",
		}, records[0])

		data, err := afero.ReadFile(h.fileSys, filepath.Join(testPath, "records", "hello_world-0.wav"))
		require.NoError(t, err)
		assert.Len(t, data, 44+2*1600)

		assert.Equal(t, 1, h.audio.recordings)
		assert.Equal(t, 1, h.audio.plays)
		assert.Contains(t, h.out.String(), "Listen to what was recorded.")
		assert.Contains(t, h.out.String(), "Recorded 100ms.")
		assert.Contains(t, h.out.String(), "Saved!")
		assert.True(t, strings.HasSuffix(h.out.String(), "\nBye!\n"))
	})

	t.Run("empty transcript discards the take", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\n   \n", Config{})
		require.NoError(t, err)

		assert.Empty(t, h.dataSet.Records())
		assert.NotContains(t, h.out.String(), "Saved!")

		exists, err := afero.Exists(h.fileSys, filepath.Join(testPath, "records"))
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = afero.Exists(h.fileSys, filepath.Join(testPath, data_set.IndexFilename))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("end of input before recording", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "", Config{})
		require.NoError(t, err)

		assert.Equal(t, 0, h.audio.recordings)
		assert.Equal(t, startPrompt+"\nBye!\n", h.out.String())
	})

	t.Run("end of input while recording releases the stream", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n", Config{})
		require.NoError(t, err)

		assert.Equal(t, 1, h.audio.recordings)
		assert.False(t, h.audio.streamOpen)
		assert.Equal(t, 0, h.audio.plays)
		assert.Empty(t, h.dataSet.Records())
		assert.Contains(t, h.out.String(), "Bye!")
	})

	t.Run("end of input at the transcript prompt", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\n", Config{})
		require.NoError(t, err)

		assert.Equal(t, 1, h.audio.plays)
		assert.Empty(t, h.dataSet.Records())
	})

	t.Run("last line without newline is still used", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\nYes", Config{})
		require.NoError(t, err)

		records := h.dataSet.Records()
		require.Len(t, records, 1)
		assert.Equal(t, "yes", records[0].Transcript)
	})

	t.Run("repeated transcripts get new suffixes", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\nstop\n\n\n\n\n\nStop\r\n", Config{})
		require.NoError(t, err)

		records := h.dataSet.Records()
		require.Len(t, records, 2)
		assert.Equal(t, "records/stop-0.wav", records[0].WavFilename)
		assert.Equal(t, "records/stop-1.wav", records[1].WavFilename)
		assert.Equal(t, 3, h.audio.recordings)
	})

	t.Run("recording failure is returned", func(t *testing.T) {
		h := newHarness(t)
		h.audio.recordErr = errors.New("device unavailable")

		err := h.run(t, "\n\n", Config{})

		assert.ErrorContains(t, err, "device unavailable")
		assert.False(t, h.audio.streamOpen)
	})

	t.Run("data set failure is returned", func(t *testing.T) {
		h := newHarness(t)

		readOnly, err := data_set.New(&data_set.Config{FileSys: afero.NewReadOnlyFs(h.fileSys), Path: testPath})
		require.NoError(t, err)
		h.dataSet = readOnly

		err = h.run(t, "\n\nhello\n", Config{})

		assert.Error(t, err)
		assert.NotContains(t, h.out.String(), "Saved!")
	})

	t.Run("warns when no speech is heard", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\n\n", Config{VAD: &fakeVAD{heard: false}})
		require.NoError(t, err)

		assert.Contains(t, h.out.String(), "No speech detected in this take.")
	})

	t.Run("shows a suggested transcript", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\n\n", Config{VAD: &fakeVAD{heard: true}, STTEngine: &fakeSTT{text: "turn on the lights"}})
		require.NoError(t, err)

		assert.NotContains(t, h.out.String(), "No speech detected")
		assert.Contains(t, h.out.String(), "Heard: turn on the lights\n")
		assert.Empty(t, h.dataSet.Records())
	})

	t.Run("transcriber failure is not fatal", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "\n\nok\n", Config{STTEngine: &fakeSTT{err: errors.New("model failed")}})
		require.NoError(t, err)

		assert.NotContains(t, h.out.String(), "Heard:")
		assert.Len(t, h.dataSet.Records(), 1)
	})
}
