package csvparser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// DefaultSummaryName is used when a batch does not name its CSV attachment.
const DefaultSummaryName = "candidates.csv"

// Summary describes a candidate summary CSV attached to a batch delivery.
type Summary struct {
	Headers []string
	Rows    int
}

// InspectSummary checks that r holds a CSV with a non-empty header row and at
// least one data row. Rows whose column count does not match the header are
// not counted.
func InspectSummary(r io.Reader) (Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return Summary{}, errors.New("csv is empty")
	}
	if err != nil {
		return Summary{}, err
	}

	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		normalized = append(normalized, strings.TrimSpace(h))
	}
	if strings.Join(normalized, "") == "" {
		return Summary{}, errors.New("csv header row is empty")
	}

	sum := Summary{Headers: normalized}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Summary{}, err
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}
		sum.Rows++
	}

	if sum.Rows == 0 {
		return Summary{}, errors.New("csv must contain header and at least one row")
	}

	return sum, nil
}

// InspectSummaryBytes is InspectSummary over an in-memory CSV.
func InspectSummaryBytes(b []byte) (Summary, error) {
	return InspectSummary(bytes.NewReader(b))
}

// SummaryName returns name with a .csv extension, or DefaultSummaryName when
// name is blank.
func SummaryName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultSummaryName
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}
	return name
}
