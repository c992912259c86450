package rangefile

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// decodeCSV reads rows of the form "low,high[,value]", "cidr[,value]" or a
// single bound. A first row that does not parse is taken as a header.
func decodeCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		records      []Record
		recordNumber int
	)

	for {
		row, err := cr.Read()
		if err != nil {
			if err != io.EOF {
				return nil, errors.Wrap(err, "failed to read CSV record")
			}

			break
		}

		recordNumber++

		rec, err := csvRecord(row)
		if err != nil {
			if recordNumber == 1 {
				// Skip headers.
				continue
			}

			return nil, errors.Wrapf(err, "record %d", recordNumber)
		}

		records = append(records, rec)
	}

	return records, nil
}

func csvRecord(row []string) (Record, error) {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	switch {
	case len(row) == 0 || row[0] == "":
		return Record{}, errors.Wrap(ErrBadRecord, "empty row")
	case strings.ContainsRune(row[0], '/'):
		return cidrRecord(row[0], field(row, 1))
	case len(row) == 1:
		p, err := ParseBound(row[0])
		if err != nil {
			return Record{}, err
		}

		return Record{Low: p, High: p}, nil
	}

	low, err := ParseBound(row[0])
	if err != nil {
		return Record{}, err
	}

	high, err := ParseBound(row[1])
	if err != nil {
		return Record{}, err
	}

	return newRecord(low, high, field(row, 2))
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}

	return ""
}
