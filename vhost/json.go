package vhost

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type document struct {
	Servers []Server `json:"servers"`
}

// ParseJSON decodes the JSON configuration: {"servers": [...]}.
func ParseJSON(data []byte) (*Set, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed JSON config: %w", err)
	}

	return NewSet(doc.Servers)
}

// Dump writes the loaded configuration as indented JSON. The output is accepted by
// ParseJSON.
func (s *Set) Dump(w io.Writer) error {
	data, err := json.MarshalIndent(document{Servers: s.servers}, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(append(data, '\n'))

	return err
}
