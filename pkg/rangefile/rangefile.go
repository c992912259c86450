// Package rangefile loads interval records from CSV, YAML and JSON files,
// optionally LZ4-compressed. Bounds are integers or IPv4 addresses; CIDR
// blocks expand to their first and last address.
package rangefile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Sentinel errors.
var (
	ErrUnknownFormat = errors.New("unknown range file format")
	ErrTooLarge      = errors.New("range file exceeds size limit")
	ErrBadRecord     = errors.New("bad range record")
)

// Format identifies a range file encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const lz4Ext = ".lz4"

// Record is one interval with its payload.
type Record struct {
	Low   int64  `json:"low"   yaml:"low"`
	High  int64  `json:"high"  yaml:"high"`
	Value string `json:"value" yaml:"value"`
}

// Options controls loading.
type Options struct {
	// MaxSize caps the decoded input in bytes. Zero means no limit.
	MaxSize int64
}

// DetectFormat derives the format from a file name. It also reports whether
// the file carries a trailing .lz4 extension.
func DetectFormat(path string) (Format, bool, error) {
	name := strings.ToLower(filepath.Base(path))

	compressed := strings.HasSuffix(name, lz4Ext)
	if compressed {
		name = strings.TrimSuffix(name, lz4Ext)
	}

	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV, compressed, nil
	case ".yaml", ".yml":
		return FormatYAML, compressed, nil
	case ".json":
		return FormatJSON, compressed, nil
	default:
		return "", compressed, errors.Wrapf(ErrUnknownFormat, "%s", path)
	}
}

// LoadFile reads all records from path.
func LoadFile(path string, opts Options) ([]Record, error) {
	format, compressed, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open range file: %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		r = lz4.NewReader(f)
	}

	records, err := Decode(r, format, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}

	return records, nil
}

// Decode reads all records of the given format from r.
func Decode(r io.Reader, format Format, opts Options) ([]Record, error) {
	data, err := readLimited(r, opts.MaxSize)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return decodeCSV(bytes.NewReader(data))
	case FormatYAML:
		return decodeYAML(data)
	case FormatJSON:
		return decodeJSON(data)
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

// Compress writes src to w as an LZ4 frame.
func Compress(w io.Writer, src io.Reader) error {
	zw := lz4.NewWriter(w)

	_, err := io.Copy(zw, src)
	if err != nil {
		return errors.Wrap(err, "lz4 compress")
	}

	return errors.Wrap(zw.Close(), "lz4 close")
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)

		return data, errors.Wrap(err, "read range file")
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "read range file")
	}

	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrTooLarge, "limit is %d bytes", limit)
	}

	return data, nil
}

// rawRecord is the shape shared by the YAML and JSON encodings.
type rawRecord struct {
	Low   any    `json:"low"   yaml:"low"`
	High  any    `json:"high"  yaml:"high"`
	CIDR  string `json:"cidr"  yaml:"cidr"`
	Value string `json:"value" yaml:"value"`
}

func (raw rawRecord) record() (Record, error) {
	if raw.CIDR != "" {
		return cidrRecord(raw.CIDR, raw.Value)
	}

	low, err := boundOf(raw.Low)
	if err != nil {
		return Record{}, errors.Wrap(err, "low")
	}

	high, err := boundOf(raw.High)
	if err != nil {
		return Record{}, errors.Wrap(err, "high")
	}

	return newRecord(low, high, raw.Value)
}

func newRecord(low, high int64, value string) (Record, error) {
	if low > high {
		return Record{}, errors.Wrapf(ErrBadRecord, "low %d is greater than high %d", low, high)
	}

	return Record{Low: low, High: high, Value: value}, nil
}

func cidrRecord(cidr, value string) (Record, error) {
	low, high, err := CIDRToRange(cidr)
	if err != nil {
		return Record{}, errors.Wrapf(ErrBadRecord, "%v", err)
	}

	return Record{Low: int64(low), High: int64(high), Value: value}, nil
}
