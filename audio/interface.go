package audio

type Interface interface {
	NewClip() (*Clip, error)
	Record(clip *Clip, hold func() error) error
	Play(clip *Clip) error
	Close() error
}
