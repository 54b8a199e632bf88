// Package tables holds the immutable lookup data used during import and audit:
// header synonyms, bank column names, UF codes and regions, ICMS rates and
// filename profiles. Defaults are compiled in; Load merges an optional
// override file on top. A *Tables must not be modified after construction and
// is safe to share across goroutines.
package tables

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Tables is the lookup data injected into the detector, canonicalizer,
// bank handler and auditor.
type Tables struct {
	HeaderSynonyms map[string][]string
	BankColumns    map[string][]string
	StateNames     map[string]string
	Regions        map[string]string
	InternalICMS   map[string]float64
	Profiles       []Profile
}

// overrides mirrors the override file layout.
type overrides struct {
	HeaderSynonyms map[string][]string `mapstructure:"header_synonyms"`
	BankColumns    map[string][]string `mapstructure:"bank_columns"`
	StateNames     map[string]string   `mapstructure:"state_names"`
	InternalICMS   map[string]float64  `mapstructure:"internal_icms"`
	Profiles       []Profile           `mapstructure:"profiles"`
}

// Default returns a fresh copy of the built-in tables.
func Default() *Tables {
	t := &Tables{
		HeaderSynonyms: make(map[string][]string, len(HeaderSynonyms)),
		BankColumns:    make(map[string][]string, len(BankColumns)),
		StateNames:     make(map[string]string, len(StateNames)),
		Regions:        make(map[string]string, len(Regions)),
		InternalICMS:   make(map[string]float64, len(InternalICMS)),
	}
	for k, v := range HeaderSynonyms {
		t.HeaderSynonyms[k] = append([]string(nil), v...)
	}
	for k, v := range BankColumns {
		t.BankColumns[k] = append([]string(nil), v...)
	}
	for k, v := range StateNames {
		t.StateNames[k] = v
	}
	for k, v := range Regions {
		t.Regions[k] = v
	}
	for k, v := range InternalICMS {
		t.InternalICMS[k] = v
	}
	for _, p := range DefaultProfiles {
		if err := p.compile(); err != nil {
			panic(err) // built-in patterns are constants
		}
		t.Profiles = append(t.Profiles, p)
	}
	return t
}

// Load returns the default tables merged with the override file at path.
// An empty path returns Default(). The file may be toml, yaml or json.
//
// Merge rules: synonyms and bank columns are appended, state names and ICMS
// rates replace the entry for the same key, profiles take priority over the
// built-in ones.
func Load(path string) (*Tables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read tables file %s: %w", path, err)
	}

	var o overrides
	if err := v.Unmarshal(&o); err != nil {
		return nil, fmt.Errorf("decode tables file %s: %w", path, err)
	}
	if err := t.merge(o); err != nil {
		return nil, fmt.Errorf("tables file %s: %w", path, err)
	}
	return t, nil
}

func (t *Tables) merge(o overrides) error {
	for field, spellings := range o.HeaderSynonyms {
		field = strings.ToLower(field)
		t.HeaderSynonyms[field] = append(t.HeaderSynonyms[field], spellings...)
	}
	for role, names := range o.BankColumns {
		role = strings.ToLower(role)
		if _, ok := t.BankColumns[role]; !ok {
			return fmt.Errorf("unknown bank column role %q", role)
		}
		t.BankColumns[role] = append(t.BankColumns[role], names...)
	}
	for name, uf := range o.StateNames {
		t.StateNames[foldAccents(strings.ToLower(name))] = strings.ToUpper(uf)
	}
	// viper lowercases map keys
	for uf, rate := range o.InternalICMS {
		uf = strings.ToUpper(uf)
		if _, ok := t.Regions[uf]; !ok {
			return fmt.Errorf("unknown UF %q in internal_icms", uf)
		}
		if rate < 0 || rate > 100 {
			return fmt.Errorf("ICMS rate for %s out of range: %v", uf, rate)
		}
		t.InternalICMS[uf] = rate
	}

	profiles := make([]Profile, 0, len(o.Profiles)+len(t.Profiles))
	for _, p := range o.Profiles {
		if err := p.compile(); err != nil {
			return err
		}
		profiles = append(profiles, p)
	}
	t.Profiles = append(profiles, t.Profiles...)
	return nil
}

// ProfilesFor returns the profiles matching a file name, in priority order.
func (t *Tables) ProfilesFor(name string) []Profile {
	var out []Profile
	for _, p := range t.Profiles {
		if p.Matches(name) {
			out = append(out, p)
		}
	}
	return out
}
