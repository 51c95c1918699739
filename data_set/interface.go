package data_set

type Interface interface {
	Add(transcript string, recordData []byte) (Record, error)
	Records() []Record
}
