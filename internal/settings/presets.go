package settings

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Presets map[string]Voice

func DefaultPresets() Presets {
	return Presets{
		"en-US:female": {LanguageCode: "en-US", Name: "en-US-Neural2-F", SSMLGender: "FEMALE"},
		"en-US:male":   {LanguageCode: "en-US", Name: "en-US-Neural2-D", SSMLGender: "MALE"},
		"en-GB:female": {LanguageCode: "en-GB", Name: "en-GB-Neural2-F", SSMLGender: "FEMALE"},
		"en-GB:male":   {LanguageCode: "en-GB", Name: "en-GB-Neural2-D", SSMLGender: "MALE"},
		"nl-NL:female": {LanguageCode: "nl-NL", Name: "nl-NL-Standard-A", SSMLGender: "FEMALE"},
		"nl-NL:male":   {LanguageCode: "nl-NL", Name: "nl-NL-Standard-B", SSMLGender: "MALE"},
	}
}

// Keys returns preset names in stable order.
func (p Presets) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type presetsFile struct {
	Presets map[string]Voice `yaml:"presets"`
}

// LoadPresets reads a YAML presets file and merges it over the built-in presets.
// An empty path returns the built-in presets.
func LoadPresets(path string) (Presets, error) {
	presets := DefaultPresets()
	if path == "" {
		return presets, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open voice presets: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	loaded, err := decodePresets(f)
	if err != nil {
		return nil, fmt.Errorf("parse voice presets %s: %w", path, err)
	}
	for k, v := range loaded {
		presets[k] = v
	}
	return presets, nil
}

func decodePresets(r io.Reader) (Presets, error) {
	var pf presetsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		if err == io.EOF {
			return Presets{}, nil
		}
		return nil, err
	}
	out := make(Presets, len(pf.Presets))
	for k, v := range pf.Presets {
		if v.LanguageCode == "" {
			return nil, fmt.Errorf("preset %q: languageCode is required", k)
		}
		out[k] = v
	}
	return out, nil
}
