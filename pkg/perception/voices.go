package perception

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type voicesFile struct {
	Voices []Voice `yaml:"voices"`
}

// LoadVoices reads the whitelisted-voice YAML file (§4.9 "per-voice
// recent posts from a whitelist (YAML-loaded)").
func LoadVoices(path string) ([]Voice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading voices file %s: %w", path, err)
	}
	var f voicesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing voices file %s: %w", path, err)
	}
	for _, v := range f.Voices {
		if v.Username == "" {
			return nil, fmt.Errorf("voices file %s: entry with empty username", path)
		}
	}
	return f.Voices, nil
}
