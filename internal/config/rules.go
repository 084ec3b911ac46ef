package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Zone is a named high-sensitivity location
type Zone struct {
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"` // hospital | school | market
	Lat      float64 `yaml:"lat"`
	Lng      float64 `yaml:"lng"`
	RadiusKm float64 `yaml:"radius_km"`
}

// Rules is the static rule data read at startup
type Rules struct {
	Zones             []Zone              `yaml:"zones"`
	Departments       map[string]string   `yaml:"departments"`
	DefaultDepartment string              `yaml:"default_department"`
	Keywords          map[string][]string `yaml:"keywords"`
}

// DefaultRules returns the built-in rule set used when no rules file is given
func DefaultRules() *Rules {
	return &Rules{
		Zones: []Zone{
			{Name: "AIIMS Hospital", Kind: "hospital", Lat: 28.5672, Lng: 77.2100, RadiusKm: 0.5},
			{Name: "Safdarjung Hospital", Kind: "hospital", Lat: 28.5685, Lng: 77.2066, RadiusKm: 0.4},
			{Name: "Delhi Public School R.K. Puram", Kind: "school", Lat: 28.5640, Lng: 77.1750, RadiusKm: 0.3},
			{Name: "Connaught Place Market", Kind: "market", Lat: 28.6315, Lng: 77.2167, RadiusKm: 0.8},
			{Name: "Chandni Chowk Market", Kind: "market", Lat: 28.6506, Lng: 77.2303, RadiusKm: 0.6},
		},
		Departments: map[string]string{
			"pothole":     "DEPT_ROADS",
			"road":        "DEPT_ROADS",
			"streetlight": "DEPT_ELECTRICITY",
			"electricity": "DEPT_ELECTRICITY",
			"water":       "DEPT_WATER",
			"sewage":      "DEPT_WATER",
			"garbage":     "DEPT_SANITATION",
		},
		DefaultDepartment: "DEPT_GENERAL",
		Keywords: map[string][]string{
			"pothole":     {"pothole", "crater", "road damage", "broken road"},
			"streetlight": {"streetlight", "street light", "lamp", "dark street"},
			"water":       {"water", "leak", "pipeline", "supply", "tap"},
			"sewage":      {"sewage", "drain", "overflow", "manhole"},
			"garbage":     {"garbage", "trash", "waste", "litter", "dump"},
			"electricity": {"power cut", "electricity", "transformer", "wire"},
		},
	}
}

// LoadRules reads a YAML rules file. An empty path yields DefaultRules.
// Sections missing from the file keep their defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file Rules
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	if len(file.Zones) > 0 {
		rules.Zones = file.Zones
	}
	if len(file.Departments) > 0 {
		rules.Departments = file.Departments
	}
	if file.DefaultDepartment != "" {
		rules.DefaultDepartment = file.DefaultDepartment
	}
	if len(file.Keywords) > 0 {
		rules.Keywords = file.Keywords
	}

	for _, z := range rules.Zones {
		if z.Name == "" || z.RadiusKm <= 0 {
			return nil, fmt.Errorf("invalid zone %q: name and positive radius_km required", z.Name)
		}
	}

	return rules, nil
}
