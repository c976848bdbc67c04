package model

import (
	"database/sql/driver"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// LocalizedNames maps a language code (e.g. "de", "zh_hans") to a type's common
// name in that language. Only languages with a non-empty name are present.
//
// The stored form is a JSON object with keys in sorted order. An empty mapping is
// stored as NULL. Decoding NULL, an empty string, or malformed JSON yields an empty
// mapping, never an error, so a bad row cannot fail a read.
type LocalizedNames map[string]string

// Set records name for lang. Empty names are ignored to keep the mapping sparse.
func (n LocalizedNames) Set(lang, name string) {
	if name == "" {
		return
	}
	n[lang] = name
}

// Languages returns the language codes present, sorted.
func (n LocalizedNames) Languages() []string {
	langs := make([]string, 0, len(n))
	for lang := range n {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Encode serializes the mapping. ok is false when the mapping is empty and the
// column should be NULL.
func (n LocalizedNames) Encode() (string, bool, error) {
	if len(n) == 0 {
		return "", false, nil
	}
	b, err := json.Marshal(map[string]string(n))
	if err != nil {
		return "", false, eris.Wrap(err, "model: encode localized names")
	}
	return string(b), true, nil
}

// DecodeLocalizedNames parses a stored mapping, degrading to empty on bad input.
func DecodeLocalizedNames(s string) LocalizedNames {
	out := LocalizedNames{}
	if s == "" {
		return out
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return out
	}
	for lang, name := range raw {
		out.Set(lang, name)
	}
	return out
}

// Value implements driver.Valuer.
func (n LocalizedNames) Value() (driver.Value, error) {
	s, ok, err := n.Encode()
	if err != nil || !ok {
		return nil, err
	}
	return s, nil
}

// Scan implements sql.Scanner.
func (n *LocalizedNames) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = LocalizedNames{}
	case string:
		*n = DecodeLocalizedNames(v)
	case []byte:
		*n = DecodeLocalizedNames(string(v))
	default:
		*n = LocalizedNames{}
	}
	return nil
}
