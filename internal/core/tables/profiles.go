package tables

import (
	"fmt"
	"regexp"
)

// Transforms applied to decoded text before CSV parsing.
const (
	TransformNone            = ""
	TransformDoubleSemicolon = "collapse_double_semicolon"
)

// Profile is a known export layout selected by file name.
type Profile struct {
	Pattern   string `mapstructure:"pattern"`
	Encoding  string `mapstructure:"encoding"`
	Delimiter string `mapstructure:"delimiter"`
	Transform string `mapstructure:"transform"`

	re *regexp.Regexp
}

// Matches reports whether name matches the profile's pattern.
func (p Profile) Matches(name string) bool {
	return p.re != nil && p.re.MatchString(name)
}

// Delim returns the profile delimiter as a rune, defaulting to ';'.
func (p Profile) Delim() rune {
	if p.Delimiter == "" {
		return ';'
	}
	if p.Delimiter == `\t` {
		return '\t'
	}
	return []rune(p.Delimiter)[0]
}

func (p *Profile) compile() error {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return fmt.Errorf("profile pattern %q: %w", p.Pattern, err)
	}
	p.re = re
	return nil
}

// DefaultProfiles cover exports whose encoding cannot be told apart by sampling.
var DefaultProfiles = []Profile{
	// SEFAZ portal downloads: Latin-1 with doubled semicolons between columns.
	{Pattern: `(?i)sefaz|sintegra`, Encoding: "iso-8859-1", Delimiter: ";", Transform: TransformDoubleSemicolon},
	// Desktop ERP item exports.
	{Pattern: `(?i)itens|produtos`, Encoding: "windows-1252", Delimiter: ";"},
	{Pattern: `(?i)notas|cabecalho`, Encoding: "windows-1252", Delimiter: ";"},
	{Pattern: `(?i)\.tsv$`, Encoding: "utf-8", Delimiter: `\t`},
}
