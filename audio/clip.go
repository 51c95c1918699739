package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/zenwerk/go-wave"
)

const bitsPerSample = 16

type bufferCloser struct {
	*bytes.Buffer
}

func (bufferCloser) Close() error {
	return nil
}

// Clip is one take held in memory as a WAV container. Samples are appended
// from the capture callback, so writes are serialized with a mutex.
type Clip struct {
	mu         sync.Mutex
	data       bytes.Buffer
	waveWriter *wave.Writer
	sampleRate int
	channels   int
	samples    int
	finished   bool
	err        error
}

func NewClip(sampleRate, channels int) (*Clip, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	c := &Clip{
		sampleRate: sampleRate,
		channels:   channels,
	}

	param := wave.WriterParam{
		Out:           bufferCloser{&c.data},
		Channel:       channels,
		SampleRate:    sampleRate,
		BitsPerSample: bitsPerSample,
	}

	waveWriter, err := wave.NewWriter(param)
	if err != nil {
		return nil, err
	}

	c.waveWriter = waveWriter

	return c, nil
}

// WriteSamples appends interleaved 16-bit samples to the take.
func (c *Clip) WriteSamples(samples []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return fmt.Errorf("clip is finished")
	}

	if c.err != nil {
		return c.err
	}

	if len(samples) == 0 {
		return nil
	}

	_, err := c.waveWriter.WriteSample16(samples)
	if err != nil {
		c.err = err

		return err
	}

	c.samples += len(samples)

	return nil
}

// capture is the stream callback. Errors are kept until Finish.
func (c *Clip) capture(in []int16) {
	_ = c.WriteSamples(in)
}

// Finish closes the WAV container. Bytes is only valid after Finish.
func (c *Clip) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return c.err
	}

	c.finished = true

	err := c.waveWriter.Close()
	if err != nil && c.err == nil {
		c.err = err
	}

	return c.err
}

func (c *Clip) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.data.Bytes()
}

func (c *Clip) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.data.Len()
}

// NumSamples counts interleaved samples, not frames.
func (c *Clip) NumSamples() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.samples
}

func (c *Clip) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	frames := c.samples / c.channels

	return time.Duration(frames) * time.Second / time.Duration(c.sampleRate)
}

// Buffer decodes the finished clip back into PCM samples.
func (c *Clip) Buffer() (*goaudio.IntBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.finished {
		return nil, fmt.Errorf("clip is not finished")
	}

	if c.samples == 0 {
		return &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: c.channels,
				SampleRate:  c.sampleRate,
			},
			Data:           []int{},
			SourceBitDepth: bitsPerSample,
		}, nil
	}

	decoder := wav.NewDecoder(bytes.NewReader(c.data.Bytes()))

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding clip: %w", err)
	}

	return buf, nil
}
