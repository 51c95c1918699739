package voice_detection

type Interface interface {
	Flux(samples []int16) float64
	HeardSpeech(samples []int) bool
}
