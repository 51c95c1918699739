package session

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"speech-dataset-recorder/audio"
	"speech-dataset-recorder/data_set"
	"speech-dataset-recorder/speech_to_text"
	"speech-dataset-recorder/voice_detection"
)

type State string

const (
	StateWaitingToRecord    State = "waiting_to_record"
	StateRecording          State = "recording"
	StateReviewingPlayback  State = "reviewing_playback"
	StateAwaitingTranscript State = "awaiting_transcript"
	StateCommitted          State = "committed"
	StateDiscarded          State = "discarded"
	StateDone               State = "done"
)

const (
	startPrompt      = "Hit Enter to start recording, then hit Enter again to stop."
	stopPrompt       = "Recording. Hit Enter to stop"
	transcriptPrompt = "Type the transcript, or just hit Enter to record again: "
)

type sessionImpl struct {
	audio      audio.Interface
	dataSet    data_set.Interface
	vad        voice_detection.Interface
	sttEngine  speech_to_text.Interface
	in         *bufio.Reader
	out        io.Writer
	state      State
	clip       *audio.Clip
	transcript string
}

type Config struct {
	Audio   audio.Interface
	DataSet data_set.Interface
	In      io.Reader
	Out     io.Writer

	// optional
	VAD       voice_detection.Interface
	STTEngine speech_to_text.Interface
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Audio == nil {
		return nil, fmt.Errorf("audio is nil")
	}

	if cfg.DataSet == nil {
		return nil, fmt.Errorf("dataSet is nil")
	}

	if cfg.In == nil {
		return nil, fmt.Errorf("in is nil")
	}

	if cfg.Out == nil {
		return nil, fmt.Errorf("out is nil")
	}

	return &sessionImpl{
		audio:     cfg.Audio,
		dataSet:   cfg.DataSet,
		vad:       cfg.VAD,
		sttEngine: cfg.STTEngine,
		in:        bufio.NewReader(cfg.In),
		out:       cfg.Out,
		state:     StateWaitingToRecord,
	}, nil
}

// Run drives takes until the operator ends input. End of input is a clean
// exit and returns nil; audio and data set failures are returned as is.
func (s *sessionImpl) Run() error {
	for {
		var err error

		switch s.state {
		case StateWaitingToRecord:
			s.state, err = s.waitToRecord()
		case StateRecording:
			s.state, err = s.record()
		case StateReviewingPlayback:
			s.state, err = s.review()
		case StateAwaitingTranscript:
			s.state, err = s.awaitTranscript()
		case StateCommitted:
			s.state, err = s.commit()
		case StateDiscarded:
			s.state = s.discard()
		case StateDone:
			fmt.Fprintln(s.out, "\nBye!")

			return nil
		default:
			return fmt.Errorf("unknown state %q", s.state)
		}

		if err != nil {
			return err
		}
	}
}

// readLine prints prompt and reads one line. ok is false once input has
// ended and nothing more was typed.
func (s *sessionImpl) readLine(prompt string) (line string, ok bool, err error) {
	fmt.Fprint(s.out, prompt)

	line, err = s.in.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", false, nil
		}
	} else if err != nil {
		return "", false, err
	}

	return strings.TrimRight(line, "\r\n"), true, nil
}

func (s *sessionImpl) waitToRecord() (State, error) {
	_, ok, err := s.readLine(startPrompt)
	if err != nil {
		return "", err
	}

	if !ok {
		return StateDone, nil
	}

	return StateRecording, nil
}

func (s *sessionImpl) record() (State, error) {
	clip, err := s.audio.NewClip()
	if err != nil {
		return "", err
	}

	ended := false

	err = s.audio.Record(clip, func() error {
		_, ok, err := s.readLine(stopPrompt)
		ended = !ok

		return err
	})
	if err != nil {
		return "", fmt.Errorf("recording: %w", err)
	}

	if ended {
		return StateDone, nil
	}

	s.clip = clip

	return StateReviewingPlayback, nil
}

func (s *sessionImpl) review() (State, error) {
	fmt.Fprintln(s.out, "Listen to what was recorded.")

	err := s.audio.Play(s.clip)
	if err != nil {
		return "", fmt.Errorf("playback: %w", err)
	}

	fmt.Fprintf(s.out, "Recorded %s.\n", s.clip.Duration().Round(100*time.Millisecond))

	if s.vad == nil && s.sttEngine == nil {
		return StateAwaitingTranscript, nil
	}

	wavBuffer, err := s.clip.Buffer()
	if err != nil {
		return "", err
	}

	if s.vad != nil && !s.vad.HeardSpeech(wavBuffer.Data) {
		fmt.Fprintln(s.out, "No speech detected in this take.")
	}

	if s.sttEngine != nil && len(wavBuffer.Data) > 0 {
		suggestion, err := s.sttEngine.Transcribe(wavBuffer)
		if err != nil {
			log.Printf("error running model: %v", err)
		} else if suggestion != "" {
			fmt.Fprintf(s.out, "Heard: %s\n", suggestion)
		}
	}

	return StateAwaitingTranscript, nil
}

func (s *sessionImpl) awaitTranscript() (State, error) {
	line, ok, err := s.readLine(transcriptPrompt)
	if err != nil {
		return "", err
	}

	if !ok {
		return StateDone, nil
	}

	s.transcript = strings.TrimSpace(strings.ToLower(line))

	if s.transcript == "" {
		return StateDiscarded, nil
	}

	return StateCommitted, nil
}

func (s *sessionImpl) commit() (State, error) {
	_, err := s.dataSet.Add(s.transcript, s.clip.Bytes())
	if err != nil {
		return "", fmt.Errorf("saving take: %w", err)
	}

	fmt.Fprintln(s.out, "Saved!")

	return s.discard(), nil
}

func (s *sessionImpl) discard() State {
	s.clip = nil
	s.transcript = ""

	fmt.Fprintln(s.out)

	return StateWaitingToRecord
}
