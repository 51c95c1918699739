package data_set

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	IndexFilename = "index.csv"
	RecordsDir    = "records"
)

var (
	indexHeader = []string{"wav_filename", "wav_filesize", "transcript"}
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// Record is one row of the index.
type Record struct {
	WavFilename string
	WavFilesize int64
	Transcript  string
}

// CorruptIndexError is returned when index.csv exists but does not match the
// expected schema.
type CorruptIndexError struct {
	Path string
	Err  error
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt index %s: %v", e.Path, e.Err)
}

func (e *CorruptIndexError) Unwrap() error {
	return e.Err
}

type dataSetImpl struct {
	fileSys    afero.Fs
	path       string
	indexPath  string
	recordsDir string
	index      []Record
}

type Config struct {
	FileSys afero.Fs
	Path    string
}

// New opens the data set rooted at cfg.Path, loading its index if one exists.
func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	d := &dataSetImpl{
		fileSys:    cfg.FileSys,
		path:       cfg.Path,
		indexPath:  filepath.Join(cfg.Path, IndexFilename),
		recordsDir: filepath.Join(cfg.Path, RecordsDir),
		index:      make([]Record, 0),
	}

	exists, err := afero.Exists(d.fileSys, d.indexPath)
	if err != nil {
		return nil, err
	}

	if exists {
		data, err := afero.ReadFile(d.fileSys, d.indexPath)
		if err != nil {
			return nil, err
		}

		d.index, err = parseIndex(data)
		if err != nil {
			return nil, &CorruptIndexError{Path: d.indexPath, Err: err}
		}
	}

	return d, nil
}

// Slug joins the word characters of transcript with underscores.
func Slug(transcript string) string {
	return strings.Join(wordPattern.FindAllString(transcript, -1), "_")
}

func (d *dataSetImpl) Add(transcript string, recordData []byte) (Record, error) {
	slug := Slug(transcript)

	var (
		recordName string
		recordPath string
	)

	for i := 0; ; i++ {
		recordName = fmt.Sprintf("%s-%d.wav", slug, i)
		recordPath = filepath.Join(d.recordsDir, recordName)

		exists, err := afero.Exists(d.fileSys, recordPath)
		if err != nil {
			return Record{}, err
		}

		if !exists {
			break
		}
	}

	record := Record{
		WavFilename: path.Join(RecordsDir, recordName),
		WavFilesize: int64(len(recordData)),
		Transcript:  transcript,
	}

	err := d.fileSys.MkdirAll(d.recordsDir, 0755)
	if err != nil {
		return Record{}, err
	}

	err = afero.WriteFile(d.fileSys, recordPath, recordData, 0644)
	if err != nil {
		return Record{}, err
	}

	index := append(d.index[:len(d.index):len(d.index)], record)

	err = d.writeIndex(index)
	if err != nil {
		return Record{}, err
	}

	d.index = index

	return record, nil
}

func (d *dataSetImpl) Records() []Record {
	records := make([]Record, len(d.index))
	copy(records, d.index)

	return records
}

// writeIndex rewrites index.csv from scratch with index. Rows end in "\n",
// not the "\r\n" that Python's csv module writes; both load the same.
func (d *dataSetImpl) writeIndex(index []Record) error {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)

	err := w.Write(indexHeader)
	if err != nil {
		return err
	}

	for _, record := range index {
		err = w.Write([]string{
			record.WavFilename,
			strconv.FormatInt(record.WavFilesize, 10),
			record.Transcript,
		})
		if err != nil {
			return err
		}
	}

	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}

	return afero.WriteFile(d.fileSys, d.indexPath, buf.Bytes(), 0644)
}

func parseIndex(data []byte) ([]Record, error) {
	records := make([]Record, 0)

	r := csv.NewReader(bytes.NewReader(data))

	header, err := r.Read()
	if err == io.EOF {
		// an empty file has no header and no rows
		return records, nil
	} else if err != nil {
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	for _, name := range indexHeader {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			return records, nil
		} else if err != nil {
			return nil, err
		}

		size, err := strconv.ParseInt(row[columns["wav_filesize"]], 10, 64)
		if err != nil {
			return nil, err
		}

		if size < 0 {
			return nil, errors.New("negative wav_filesize")
		}

		records = append(records, Record{
			WavFilename: row[columns["wav_filename"]],
			WavFilesize: size,
			Transcript:  row[columns["transcript"]],
		})
	}
}
