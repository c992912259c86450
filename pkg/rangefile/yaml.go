package rangefile

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// yamlDocument accepts either a bare list or a mapping with an "intervals" key.
type yamlDocument struct {
	Intervals []rawRecord `yaml:"intervals"`
}

func decodeYAML(data []byte) ([]Record, error) {
	var raws []rawRecord

	listErr := yaml.Unmarshal(data, &raws)
	if listErr != nil {
		var doc yamlDocument

		docErr := yaml.Unmarshal(data, &doc)
		if docErr != nil {
			return nil, errors.Wrapf(ErrBadRecord, "yaml: %v", listErr)
		}

		raws = doc.Intervals
	}

	return convert(raws)
}

func convert(raws []rawRecord) ([]Record, error) {
	records := make([]Record, 0, len(raws))

	for i, raw := range raws {
		rec, err := raw.record()
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", i+1)
		}

		records = append(records, rec)
	}

	return records, nil
}
