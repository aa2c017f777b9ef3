package sensor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"
)

// MaxLabelLen bounds the label attached to logged VOC samples.
const MaxLabelLen = 31

// truncateLabel cuts s to at most n bytes without splitting a rune.
func truncateLabel(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ErrNoSamples is returned when exporting an empty VOC log.
var ErrNoSamples = errors.New("no voc samples collected")

// VOCSample is one row of labelled training data.
type VOCSample struct {
	Timestamp   time.Time
	VOC         uint32
	Temperature float64
	Humidity    float64
	Label       string
}

// vocRing is a bounded ring buffer; when full the oldest sample is overwritten.
type vocRing struct {
	buf   []VOCSample
	start int
	n     int
}

func newVOCRing(capacity int) *vocRing {
	return &vocRing{buf: make([]VOCSample, capacity)}
}

func (r *vocRing) push(s VOCSample) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *vocRing) len() int { return r.n }

// drain returns samples oldest first and empties the ring.
func (r *vocRing) drain() []VOCSample {
	out := make([]VOCSample, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	r.start, r.n = 0, 0
	return out
}

// CSVHeader is the column order of exported VOC logs.
var CSVHeader = []string{"timestamp", "voc", "temperature", "humidity", "label"}

// WriteCSV writes samples with a header row. Timestamps are Unix milliseconds.
func WriteCSV(w io.Writer, samples []VOCSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatInt(s.Timestamp.UnixMilli(), 10),
			strconv.FormatUint(uint64(s.VOC), 10),
			strconv.FormatFloat(s.Temperature, 'f', 2, 64),
			strconv.FormatFloat(s.Humidity, 'f', 2, 64),
			s.Label,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a log written by WriteCSV.
func ReadCSV(r io.Reader) ([]VOCSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoSamples
	}

	samples := make([]VOCSample, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d timestamp: %w", i+2, err)
		}
		voc, err := strconv.ParseUint(row[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("row %d voc: %w", i+2, err)
		}
		temp, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d temperature: %w", i+2, err)
		}
		hum, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d humidity: %w", i+2, err)
		}
		samples = append(samples, VOCSample{
			Timestamp:   time.UnixMilli(ms),
			VOC:         uint32(voc),
			Temperature: temp,
			Humidity:    hum,
			Label:       row[4],
		})
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	return samples, nil
}
