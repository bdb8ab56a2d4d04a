package converter

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var zipMagic = []byte("PK\x03\x04")

// Input is an export to convert, either a file on disk or a buffer that is
// already in memory. Data takes precedence over Path when both are set.
type Input struct {
	Path string
	Name string
	Data []byte
}

// FromPath returns an Input backed by the file at path.
func FromPath(path string) Input {
	return Input{Path: path}
}

// FromBytes returns an Input backed by data. name is only used in messages.
func FromBytes(name string, data []byte) Input {
	if data == nil {
		data = []byte{}
	}
	return Input{Name: name, Data: data}
}

func (in Input) String() string {
	if in.Name != "" {
		return in.Name
	}
	if in.Path != "" {
		return in.Path
	}
	return "<buffer>"
}

func (in Input) isXLSX() bool {
	if in.Data != nil {
		return bytes.HasPrefix(in.Data, zipMagic)
	}
	return strings.EqualFold(filepath.Ext(in.Path), ".xlsx")
}

// recordReader yields the rows that follow the preamble, header first.
type recordReader interface {
	Read() ([]string, error)
	// Progress is the consumed fraction of the input, in [0, 1].
	Progress() float64
	Close() error
}

// openRecords opens in and discards its first line.
func openRecords(in Input) (recordReader, error) {
	if in.isXLSX() {
		return openXLSX(in)
	}

	var (
		src    io.Reader
		closer io.Closer
		size   int64
	)

	if in.Data != nil {
		src = bytes.NewReader(in.Data)
		size = int64(len(in.Data))
	} else {
		f, err := os.Open(in.Path)
		if err != nil {
			return nil, newIOError("open", in.String(), err)
		}
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		src = f
		closer = f
	}

	counter := &countingReader{r: src}
	br := bufio.NewReader(counter)

	// DragonShield writes a line that is not CSV ahead of the header.
	if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
		if closer != nil {
			closer.Close()
		}
		return nil, newIOError("read", in.String(), err)
	}

	// Card names carry bare quotes, e.g. inch marks.
	r := csv.NewReader(br)
	r.LazyQuotes = true

	return &csvRecords{
		r:       r,
		counter: counter,
		size:    size,
		closer:  closer,
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type csvRecords struct {
	r       *csv.Reader
	counter *countingReader
	size    int64
	closer  io.Closer
}

func (c *csvRecords) Read() ([]string, error) {
	return c.r.Read()
}

func (c *csvRecords) Progress() float64 {
	if c.size <= 0 {
		return 0
	}
	p := float64(c.counter.n) / float64(c.size)
	if p > 1 {
		p = 1
	}
	return p
}

func (c *csvRecords) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// openXLSX reads the first sheet of a workbook. The first row plays the
// role of the preamble line and is dropped.
func openXLSX(in Input) (recordReader, error) {
	var (
		f   *excelize.File
		err error
	)
	if in.Data != nil {
		f, err = excelize.OpenReader(bytes.NewReader(in.Data))
	} else {
		f, err = excelize.OpenFile(in.Path)
	}
	if err != nil {
		return nil, newIOError("open", in.String(), err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, newIOError("read", in.String(), err)
	}

	if len(rows) > 0 {
		rows = rows[1:]
	}

	return &xlsxRecords{rows: rows}, nil
}

type xlsxRecords struct {
	rows  [][]string
	next  int
	width int
}

func (x *xlsxRecords) Read() ([]string, error) {
	for x.next < len(x.rows) {
		row := x.rows[x.next]
		x.next++

		// csv.Reader skips blank lines; do the same for blank sheet rows.
		if isBlank(row) {
			continue
		}

		if x.width == 0 {
			x.width = len(row)
			return row, nil
		}

		if len(row) > x.width {
			return nil, fmt.Errorf("row has %d cells, header has %d: %w", len(row), x.width, csv.ErrFieldCount)
		}

		// Trailing empty cells are not stored in the sheet.
		padded := make([]string, x.width)
		copy(padded, row)
		return padded, nil
	}
	return nil, io.EOF
}

func (x *xlsxRecords) Progress() float64 {
	if len(x.rows) == 0 {
		return 1
	}
	return float64(x.next) / float64(len(x.rows))
}

func (x *xlsxRecords) Close() error { return nil }

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
