package converter

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/nconklindev/cardshift/internal/types"

	"github.com/charmbracelet/log"
)

// PreviewLimit is the number of data rows Preview returns by default.
const PreviewLimit = 10

const utf8BOM = "\ufeff"

// Options tunes a single Convert call. The zero value is usable.
type Options struct {
	Logger *log.Logger
	// Progress receives the consumed fraction of the input. Sends never
	// block; updates are dropped when the channel is full.
	Progress chan<- float64
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard)
	}
	return o.Logger
}

func (o Options) report(p float64) {
	if o.Progress == nil {
		return
	}
	select {
	case o.Progress <- p:
	default:
	}
}

// Convert reads a DragonShield export, renames its columns and appends the
// rows to the CSV file at outputPath.
//
// The output is opened in append mode and created if needed. A header row is
// written only when the file was empty; existing content is never inspected.
// On failure, rows converted before the fault stay in the output.
func Convert(in Input, outputPath string, opts Options) (*types.ConversionResult, error) {
	logger := opts.logger().With("input", in.String(), "output", outputPath)

	records, err := openRecords(in)
	if err != nil {
		return nil, err
	}
	defer records.Close()

	result := &types.ConversionResult{
		InputFile:  in.String(),
		OutputFile: outputPath,
	}

	header, err := records.Read()
	if err == io.EOF {
		logger.Warn("input has no header row, nothing to convert")
		opts.report(1)
		return result, nil
	}
	if err != nil {
		return nil, classify(err, 0, in)
	}

	positions, err := columnPositions(header)
	if err != nil {
		return nil, err
	}
	logger.Debug("header accepted", "columns", header)

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, newIOError("open", outputPath, err)
	}

	info, err := out.Stat()
	if err != nil {
		out.Close()
		return nil, newIOError("stat", outputPath, err)
	}
	needHeader := info.Size() == 0

	writer := csv.NewWriter(out)
	rowErr := func() error {
		for row := 1; ; row++ {
			fields, err := records.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return classify(err, row, in)
			}

			if needHeader {
				if err := writer.Write(types.OutputColumns); err != nil {
					return newIOError("write", outputPath, err)
				}
				needHeader = false
				result.HeaderWritten = true
			}

			if err := writer.Write(recordAt(fields, positions).Fields()); err != nil {
				return newIOError("write", outputPath, err)
			}
			result.RowsWritten++
			opts.report(records.Progress())
		}
	}()

	// Flush even after a failed row so earlier rows reach the file.
	writer.Flush()
	flushErr := writer.Error()
	closeErr := out.Close()

	if rowErr != nil {
		logger.Error("conversion aborted", "rows", result.RowsWritten, "err", rowErr)
		return nil, rowErr
	}
	if flushErr != nil {
		return nil, newIOError("flush", outputPath, flushErr)
	}
	if closeErr != nil {
		return nil, newIOError("close", outputPath, closeErr)
	}

	opts.report(1)
	logger.Info("conversion complete", "rows", result.RowsWritten, "header", result.HeaderWritten)
	return result, nil
}

// Preview reads the header and at most limit data rows of in without
// writing anything.
func Preview(in Input, limit int) (*types.FileData, error) {
	records, err := openRecords(in)
	if err != nil {
		return nil, err
	}
	defer records.Close()

	header, err := records.Read()
	if err == io.EOF {
		return &types.FileData{}, nil
	}
	if err != nil {
		return nil, classify(err, 0, in)
	}

	data := &types.FileData{Headers: cleanHeader(header)}
	for row := 1; row <= limit; row++ {
		fields, err := records.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classify(err, row, in)
		}
		data.Rows = append(data.Rows, fields)
	}

	return data, nil
}

// PreviewRecords maps sampled rows onto Records, as Convert would.
func PreviewRecords(data *types.FileData) ([]types.Record, error) {
	positions, err := columnPositions(data.Headers)
	if err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(data.Rows))
	for _, row := range data.Rows {
		records = append(records, recordAt(row, positions))
	}
	return records, nil
}

// columnPositions maps each of types.InputColumns to its index in header.
func columnPositions(header []string) ([]int, error) {
	header = cleanHeader(header)

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	positions := make([]int, len(types.InputColumns))
	for i, name := range types.InputColumns {
		pos, ok := index[name]
		if !ok {
			return nil, &ParseError{Column: name, Err: ErrMissingColumn}
		}
		positions[i] = pos
	}
	return positions, nil
}

func cleanHeader(header []string) []string {
	if len(header) == 0 {
		return header
	}
	cleaned := make([]string, len(header))
	copy(cleaned, header)
	cleaned[0] = strings.TrimPrefix(cleaned[0], utf8BOM)
	return cleaned
}

func recordAt(fields []string, positions []int) types.Record {
	return types.Record{
		Quantity:   fields[positions[0]],
		CardName:   fields[positions[1]],
		SetCode:    fields[positions[2]],
		CardNumber: fields[positions[3]],
	}
}

// classify sorts a read failure into the parse or I/O bucket.
func classify(err error, row int, in Input) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) || errors.Is(err, csv.ErrFieldCount) {
		return &ParseError{Row: row, Err: err}
	}
	return newIOError("read", in.String(), err)
}
