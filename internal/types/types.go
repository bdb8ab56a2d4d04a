package types

// Input column names as exported by DragonShield.
const (
	ColQuantity   = "Quantity"
	ColCardName   = "Card Name"
	ColSetCode    = "Set Code"
	ColCardNumber = "Card Number"
)

// Output column names expected by the importing tool.
const (
	ColCount           = "Count"
	ColName            = "Name"
	ColEdition         = "Edition"
	ColCollectorNumber = "Collector Number"
)

// InputColumns lists the required input headers. Position i maps to
// OutputColumns[i].
var InputColumns = []string{ColQuantity, ColCardName, ColSetCode, ColCardNumber}

// OutputColumns is the fixed column order of the converted file.
var OutputColumns = []string{ColCount, ColName, ColEdition, ColCollectorNumber}

// Record is one inventory line. Values are kept as text.
type Record struct {
	Quantity   string
	CardName   string
	SetCode    string
	CardNumber string
}

// Fields returns the record in OutputColumns order.
func (r Record) Fields() []string {
	return []string{r.Quantity, r.CardName, r.SetCode, r.CardNumber}
}

type ConversionResult struct {
	InputFile     string
	OutputFile    string
	RowsWritten   int
	HeaderWritten bool
}

type FileData struct {
	Headers []string
	Rows    [][]string
}

// MissingColumns reports the required input headers absent from headers.
func MissingColumns(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	var missing []string
	for _, c := range InputColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
