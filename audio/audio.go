package audio

import (
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
)

// stream is the part of *portaudio.Stream the session drives.
type stream interface {
	Start() error
	Stop() error
	Close() error
	Write() error
}

var openStream = func(numInputChannels, numOutputChannels int, sampleRate float64, framesPerBuffer int, args ...interface{}) (stream, error) {
	return portaudio.OpenDefaultStream(numInputChannels, numOutputChannels, sampleRate, framesPerBuffer, args...)
}

type audioImpl struct {
	sampleRate      int
	channels        int
	framesPerBuffer int
	playChunk       int
	audioRunning    bool
}

type Config struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	PlayChunk       int
}

// New initializes PortAudio. Close must be called once the session ends.
func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.FramesPerBuffer <= 0 || cfg.PlayChunk <= 0 {
		return nil, fmt.Errorf("invalid audio config: %+v", *cfg)
	}

	err := portaudio.Initialize()
	if err != nil {
		return nil, err
	}

	return &audioImpl{
		sampleRate:      cfg.SampleRate,
		channels:        cfg.Channels,
		framesPerBuffer: cfg.FramesPerBuffer,
		playChunk:       cfg.PlayChunk,
		audioRunning:    true,
	}, nil
}

func (a *audioImpl) NewClip() (*Clip, error) {
	return NewClip(a.sampleRate, a.channels)
}

// Record captures into clip until hold returns. The input stream is stopped
// and closed, and the clip finished, on every return path.
func (a *audioImpl) Record(clip *Clip, hold func() error) (err error) {
	if clip == nil {
		return fmt.Errorf("clip is nil")
	}

	defer func() {
		finishErr := clip.Finish()
		if err == nil {
			err = finishErr
		}
	}()

	stream, err := openStream(a.channels, 0, float64(a.sampleRate), a.framesPerBuffer, clip.capture)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := stream.Close()
		if err == nil {
			err = closeErr
		}
	}()

	err = stream.Start()
	if err != nil {
		return err
	}

	defer func() {
		stopErr := stream.Stop()
		if err == nil {
			err = stopErr
		}
	}()

	return hold()
}

// Play writes the clip to the default output device and blocks until the
// last chunk has been played.
func (a *audioImpl) Play(clip *Clip) error {
	if clip == nil {
		return fmt.Errorf("clip is nil")
	}

	wavBuffer, err := clip.Buffer()
	if err != nil {
		return err
	}

	if len(wavBuffer.Data) == 0 {
		return nil
	}

	if wavBuffer.SourceBitDepth != bitsPerSample {
		return fmt.Errorf("unsupported bit depth: %d", wavBuffer.SourceBitDepth)
	}

	channels := wavBuffer.Format.NumChannels
	out := make([]int16, a.playChunk*channels)

	stream, err := openStream(0, channels, float64(wavBuffer.Format.SampleRate), a.playChunk, out)
	if err != nil {
		return err
	}

	defer stream.Close()

	err = stream.Start()
	if err != nil {
		return err
	}

	for offset := 0; offset < len(wavBuffer.Data); offset += len(out) {
		fillChunk(out, wavBuffer.Data[offset:])

		err = stream.Write()
		if err != nil {
			return err
		}
	}

	return stream.Stop()
}

// fillChunk copies the head of data into out and zero-pads the rest.
func fillChunk(out []int16, data []int) {
	for i := range out {
		if i < len(data) {
			out[i] = int16(data[i])
		} else {
			out[i] = 0
		}
	}
}

func (a *audioImpl) Close() error {
	if !a.audioRunning {
		return nil
	}

	a.audioRunning = false

	err := portaudio.Terminate()
	if err != nil {
		log.Printf("Error while freeing audio: %v", err)
	}

	return err
}
