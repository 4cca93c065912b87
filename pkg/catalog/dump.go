package catalog

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DumpVersion is the current dump format version.
const DumpVersion = 1

// Dump is a captured result of ColumnsQuery that can stand in for a live
// connection.
type Dump struct {
	Version int         `json:"version" yaml:"version"`
	Columns []ColumnRow `json:"columns" yaml:"columns"`
}

// DumpFormat is the encoding of a dump file.
type DumpFormat string

const (
	DumpFormatYAML DumpFormat = "yaml"
	DumpFormatJSON DumpFormat = "json"
)

// ParseDumpFormat accepts "yaml", "yml" and "json".
func ParseDumpFormat(s string) (DumpFormat, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return DumpFormatYAML, nil
	case "json":
		return DumpFormatJSON, nil
	default:
		return "", errors.Errorf("unsupported dump format %q", s)
	}
}

// LoadDump reads a dump file and builds a snapshot from it. The format is
// taken from the file extension; files without a known extension are tried
// as YAML first, then JSON.
func LoadDump(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, snapshotUnavailable(err, "reading schema dump "+path)
	}

	var dump *Dump
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dump, err = decodeDump(data, DumpFormatYAML)
	case ".json":
		dump, err = decodeDump(data, DumpFormatJSON)
	default:
		dump, err = decodeDump(data, DumpFormatYAML)
		if err != nil {
			dump, err = decodeDump(data, DumpFormatJSON)
		}
	}
	if err != nil {
		return nil, snapshotUnavailable(err, "parsing schema dump "+path)
	}
	return BuildSnapshot(dump.Columns)
}

// WriteDump encodes rows as a dump to w.
func WriteDump(w io.Writer, rows []ColumnRow, format DumpFormat) error {
	dump := Dump{Version: DumpVersion, Columns: rows}
	switch format {
	case DumpFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(dump), "failed to encode schema dump")
	case DumpFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(dump); err != nil {
			return errors.Wrap(err, "failed to encode schema dump")
		}
		return errors.Wrap(enc.Close(), "failed to encode schema dump")
	default:
		return errors.Errorf("unsupported dump format %q", format)
	}
}

func decodeDump(data []byte, format DumpFormat) (*Dump, error) {
	dump := &Dump{}
	var err error
	switch format {
	case DumpFormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(dump)
	case DumpFormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(dump)
	default:
		return nil, errors.Errorf("unsupported dump format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s schema dump", format)
	}
	if dump.Version > DumpVersion {
		return nil, errors.Errorf("schema dump version %d is newer than supported version %d", dump.Version, DumpVersion)
	}
	return dump, nil
}
