package converter

import (
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nconklindev/cardshift/internal/types"
)

const preamble = "\"sep=,\"\n"

func writeInput(t *testing.T, dir string, records [][]string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(preamble)
	w := csv.NewWriter(&b)
	if err := w.WriteAll(records); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

var inputHeader = []string{"Quantity", "Card Name", "Set Code", "Card Number"}

func TestConvert_RenamesColumns(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	inputFile := writeInput(t, tmpDir, [][]string{
		inputHeader,
		{"4", "Lightning Bolt", "LEA", "123"},
		{"1", "Jace, the Mind Sculptor", "WWK", "31a"},
		{"12", "Island", "UNH", "137★"},
	})

	result, err := Convert(FromPath(inputFile), outputFile, Options{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if result.RowsWritten != 3 {
		t.Errorf("Expected 3 rows written, got %d", result.RowsWritten)
	}
	if !result.HeaderWritten {
		t.Errorf("Expected header to be written to a new file")
	}

	records := readOutput(t, outputFile)
	expected := [][]string{
		{"Count", "Name", "Edition", "Collector Number"},
		{"4", "Lightning Bolt", "LEA", "123"},
		{"1", "Jace, the Mind Sculptor", "WWK", "31a"},
		{"12", "Island", "UNH", "137★"},
	}

	if len(records) != len(expected) {
		t.Fatalf("Expected %d records, got %d", len(expected), len(records))
	}
	for i := range expected {
		for j := range expected[i] {
			if records[i][j] != expected[i][j] {
				t.Errorf("Record %d field %d: expected %q, got %q", i, j, expected[i][j], records[i][j])
			}
		}
	}
}

func TestConvert_ColumnOrderAndExtras(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	inputFile := writeInput(t, tmpDir, [][]string{
		{"Folder Name", "Card Number", "Set Code", "Card Name", "Quantity", "Price Bought"},
		{"Binder", "123", "LEA", "Lightning Bolt", "4", "0.99"},
	})

	if _, err := Convert(FromPath(inputFile), outputFile, Options{}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	records := readOutput(t, outputFile)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	want := []string{"4", "Lightning Bolt", "LEA", "123"}
	for i, v := range want {
		if records[1][i] != v {
			t.Errorf("Field %d: expected %q, got %q", i, v, records[1][i])
		}
	}
}

func TestConvert_AppendsWithoutSecondHeader(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	inputFile := writeInput(t, tmpDir, [][]string{
		inputHeader,
		{"4", "Lightning Bolt", "LEA", "123"},
		{"2", "Counterspell", "ICE", "64"},
	})

	if _, err := Convert(FromPath(inputFile), outputFile, Options{}); err != nil {
		t.Fatalf("first Convert failed: %v", err)
	}
	result, err := Convert(FromPath(inputFile), outputFile, Options{})
	if err != nil {
		t.Fatalf("second Convert failed: %v", err)
	}

	if result.HeaderWritten {
		t.Errorf("Expected no header on the second run")
	}

	records := readOutput(t, outputFile)
	if len(records) != 5 {
		t.Fatalf("Expected 1 header + 4 rows, got %d records", len(records))
	}
	if records[0][0] != "Count" {
		t.Errorf("Expected header first, got %v", records[0])
	}
	for i := 1; i < len(records); i++ {
		if records[i][0] == "Count" {
			t.Errorf("Unexpected header at record %d", i)
		}
	}
}

func TestConvert_AppendsToExistingContent(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	// Whatever is already there is left alone and never checked.
	existing := "something,else\n"
	if err := os.WriteFile(outputFile, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	inputFile := writeInput(t, tmpDir, [][]string{
		inputHeader,
		{"4", "Lightning Bolt", "LEA", "123"},
	})

	if _, err := Convert(FromPath(inputFile), outputFile, Options{}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	got, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatal(err)
	}
	want := existing + "4,Lightning Bolt,LEA,123\n"
	if string(got) != want {
		t.Errorf("Expected %q, got %q", want, string(got))
	}
}

func TestConvert_HeaderOnly(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")
	inputFile := writeInput(t, tmpDir, [][]string{inputHeader})

	result, err := Convert(FromPath(inputFile), outputFile, Options{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.RowsWritten != 0 {
		t.Errorf("Expected 0 rows, got %d", result.RowsWritten)
	}

	if records := readOutput(t, outputFile); len(records) != 0 {
		t.Errorf("Expected no output records, got %v", records)
	}
}

func TestConvert_PreambleOnly(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	result, err := Convert(FromBytes("export.csv", []byte("sep=,")), outputFile, Options{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.RowsWritten != 0 {
		t.Errorf("Expected 0 rows, got %d", result.RowsWritten)
	}
	if _, err := os.Stat(outputFile); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected output not to be created, stat err = %v", err)
	}
}

func TestConvert_MissingInput(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	_, err := Convert(FromPath(filepath.Join(tmpDir, "nope.csv")), outputFile, Options{})
	if err == nil {
		t.Fatal("Expected an error")
	}

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected *IOError, got %T: %v", err, err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}

	if _, err := os.Stat(outputFile); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected output not to be created, stat err = %v", err)
	}
}

func TestConvert_MissingColumn(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	inputFile := writeInput(t, tmpDir, [][]string{
		{"Quantity", "Card Name", "Set Code"},
		{"4", "Lightning Bolt", "LEA"},
	})

	_, err := Convert(FromPath(inputFile), outputFile, Options{})

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected *ParseError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
	if parseErr.Column != "Card Number" {
		t.Errorf("Expected missing column %q, got %q", "Card Number", parseErr.Column)
	}
	if _, err := os.Stat(outputFile); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected output not to be created, stat err = %v", err)
	}
}

func TestConvert_BadRowKeepsEarlierRows(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	content := preamble +
		"Quantity,Card Name,Set Code,Card Number\n" +
		"4,Lightning Bolt,LEA,123\n" +
		"2,Counterspell,ICE\n" +
		"1,Island,UNH,137\n"
	inputFile := filepath.Join(tmpDir, "input.csv")
	if err := os.WriteFile(inputFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Convert(FromPath(inputFile), outputFile, Options{})
	if result != nil {
		t.Errorf("Expected no result on failure, got %+v", result)
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected *ParseError, got %T: %v", err, err)
	}
	if parseErr.Row != 2 {
		t.Errorf("Expected failure on row 2, got %d", parseErr.Row)
	}
	if !errors.Is(err, csv.ErrFieldCount) {
		t.Errorf("Expected field count error, got %v", err)
	}

	records := readOutput(t, outputFile)
	if len(records) != 2 {
		t.Fatalf("Expected header + 1 row to remain, got %v", records)
	}
	if records[1][1] != "Lightning Bolt" {
		t.Errorf("Expected first row to remain, got %v", records[1])
	}
}

func TestConvert_FromBytes(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	data := []byte(preamble + "\ufeffQuantity,Card Name,Set Code,Card Number\r\n4,Lightning Bolt,LEA,123\r\n")

	result, err := Convert(FromBytes("export.csv", data), outputFile, Options{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.InputFile != "export.csv" {
		t.Errorf("Expected input name export.csv, got %s", result.InputFile)
	}

	records := readOutput(t, outputFile)
	if len(records) != 2 || records[1][1] != "Lightning Bolt" {
		t.Errorf("Unexpected output %v", records)
	}
}

func TestConvert_ReportsProgress(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")
	inputFile := writeInput(t, tmpDir, [][]string{
		inputHeader,
		{"4", "Lightning Bolt", "LEA", "123"},
	})

	progress := make(chan float64, 100)
	if _, err := Convert(FromPath(inputFile), outputFile, Options{Progress: progress}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	close(progress)

	var last float64
	for p := range progress {
		if p < 0 || p > 1 {
			t.Errorf("Progress out of range: %f", p)
		}
		last = p
	}
	if last != 1 {
		t.Errorf("Expected final progress 1, got %f", last)
	}
}

func TestColumnPositions(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		expected []int
		missing  string
	}{
		{"Exact order", inputHeader, []int{0, 1, 2, 3}, ""},
		{"Reversed", []string{"Card Number", "Set Code", "Card Name", "Quantity"}, []int{3, 2, 1, 0}, ""},
		{"Byte order mark", []string{"\ufeffQuantity", "Card Name", "Set Code", "Card Number"}, []int{0, 1, 2, 3}, ""},
		{"Missing quantity", []string{"Card Name", "Set Code", "Card Number"}, nil, "Quantity"},
		{"Renamed already", types.OutputColumns, nil, "Quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := columnPositions(tt.header)
			if tt.missing != "" {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) || parseErr.Column != tt.missing {
					t.Errorf("columnPositions(%v) error = %v; want missing %q", tt.header, err, tt.missing)
				}
				return
			}
			if err != nil {
				t.Fatalf("columnPositions(%v) error = %v", tt.header, err)
			}
			for i, v := range got {
				if v != tt.expected[i] {
					t.Errorf("columnPositions(%v) = %v; want %v", tt.header, got, tt.expected)
					break
				}
			}
		})
	}
}

func TestConvert_BareQuoteInField(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "output.csv")

	content := preamble +
		"Quantity,Card Name,Set Code,Card Number\n" +
		"1,Lightning Bolt,LEA,1\n" +
		"1,Kongming 12\" Figure,PTK,2\n"
	inputFile := filepath.Join(tmpDir, "input.csv")
	if err := os.WriteFile(inputFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Convert(FromPath(inputFile), outputFile, Options{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.RowsWritten != 2 {
		t.Errorf("Expected 2 rows written, got %d", result.RowsWritten)
	}

	records := readOutput(t, outputFile)
	if len(records) != 3 {
		t.Fatalf("Expected header + 2 rows, got %v", records)
	}
	want := []string{"1", "Kongming 12\" Figure", "PTK", "2"}
	for i, v := range want {
		if records[2][i] != v {
			t.Errorf("Field %d: expected %q, got %q", i, v, records[2][i])
		}
	}
}

func TestConvert_OutputIsDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := writeInput(t, tmpDir, [][]string{
		inputHeader,
		{"4", "Lightning Bolt", "LEA", "123"},
	})

	_, err := Convert(FromPath(inputFile), t.TempDir(), Options{})

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected *IOError, got %T: %v", err, err)
	}
	if ioErr.Op != "open" {
		t.Errorf("Expected open failure, got %q: %v", ioErr.Op, err)
	}
}

func TestConvert_FlushFailure(t *testing.T) {
	const full = "/dev/full"
	if _, err := os.Stat(full); err != nil {
		t.Skipf("%s not available: %v", full, err)
	}

	inputFile := writeInput(t, t.TempDir(), [][]string{
		inputHeader,
		{"4", "Lightning Bolt", "LEA", "123"},
	})

	result, err := Convert(FromPath(inputFile), full, Options{})
	if result != nil {
		t.Errorf("Expected no result on failure, got %+v", result)
	}

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected *IOError, got %T: %v", err, err)
	}
	if ioErr.Op != "flush" {
		t.Errorf("Expected flush failure, got %q: %v", ioErr.Op, err)
	}
}
