package session

type Interface interface {
	Run() error
}
