// Package guide holds the static how-to-use content shown next to the upload and chat views.
package guide

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed guide.yaml
var defaultGuide []byte

// Guide is the informational page content.
type Guide struct {
	Title        string       `yaml:"title" json:"title"`
	Subtitle     string       `yaml:"subtitle" json:"subtitle"`
	Overview     Overview     `yaml:"overview" json:"overview"`
	Steps        []Step       `yaml:"steps" json:"steps"`
	CallToAction CallToAction `yaml:"callToAction" json:"callToAction"`
}

// Overview is the hero text above the two flows.
type Overview struct {
	Headline string `yaml:"headline" json:"headline"`
	Tagline  string `yaml:"tagline" json:"tagline"`
}

// Step is one of the upload → ask → answer steps.
type Step struct {
	Icon        string   `yaml:"icon" json:"icon"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Details     []string `yaml:"details" json:"details"`
}

// CallToAction links back to the main page.
type CallToAction struct {
	Headline string `yaml:"headline" json:"headline"`
	Text     string `yaml:"text" json:"text"`
	LinkText string `yaml:"linkText" json:"linkText"`
	Href     string `yaml:"href" json:"href"`
}

// Parse reads guide content from YAML.
func Parse(r io.Reader) (*Guide, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var g Guide
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing guide: %w", err)
	}
	if len(g.Steps) == 0 {
		return nil, fmt.Errorf("parsing guide: no steps defined")
	}
	return &g, nil
}

var (
	loadOnce sync.Once
	loaded   *Guide
	loadErr  error
)

// Default returns the embedded guide, parsed once.
func Default() (*Guide, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(bytes.NewReader(defaultGuide))
	})
	return loaded, loadErr
}
