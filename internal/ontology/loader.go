package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// fileShape mirrors the on-disk ontology document: a top-level `domain`
// block plus terms/element_mappings/relationship_rules lists. Field names
// match both the YAML and JSON configs the original loader accepted.
type fileShape struct {
	Domain struct {
		Name        string `yaml:"name" json:"name"`
		Version     string `yaml:"version" json:"version"`
		Description string `yaml:"description" json:"description"`
		Settings    struct {
			DefaultConfidenceThreshold *float64 `yaml:"default_confidence_threshold" json:"default_confidence_threshold"`
			MinMappingConfidence       *float64 `yaml:"min_mapping_confidence" json:"min_mapping_confidence"`
			MaxRelationshipsPerPair    *int     `yaml:"max_relationships_per_pair" json:"max_relationships_per_pair"`
			EnableTransitiveInference  *bool    `yaml:"enable_transitive_inference" json:"enable_transitive_inference"`
		} `yaml:"settings" json:"settings"`
	} `yaml:"domain" json:"domain"`

	Terms []struct {
		ID          string   `yaml:"id" json:"id"`
		Label       string   `yaml:"label" json:"label"`
		Description string   `yaml:"description" json:"description"`
		Aliases     []string `yaml:"aliases" json:"aliases"`
	} `yaml:"terms" json:"terms"`

	ElementMappings []struct {
		TermID string `yaml:"term_id" json:"term_id"`
		Rules  []struct {
			Type                string   `yaml:"type" json:"type"`
			ElementTypes        []string `yaml:"element_types" json:"element_types"`
			SemanticPhrase      string   `yaml:"semantic_phrase" json:"semantic_phrase"`
			ConfidenceThreshold float64  `yaml:"confidence_threshold" json:"confidence_threshold"`
			Pattern             string   `yaml:"pattern" json:"pattern"`
			CaseSensitive       bool     `yaml:"case_sensitive" json:"case_sensitive"`
			Keywords            []string `yaml:"keywords" json:"keywords"`
			WordBoundary        bool     `yaml:"word_boundary" json:"word_boundary"`
		} `yaml:"rules" json:"rules"`
	} `yaml:"element_mappings" json:"element_mappings"`

	RelationshipRules []struct {
		ID               string `yaml:"id" json:"id"`
		RelationshipType string `yaml:"relationship_type" json:"relationship_type"`
		Description      string `yaml:"description" json:"description"`
		Bidirectional    bool   `yaml:"bidirectional" json:"bidirectional"`
		Source           endpointShape `yaml:"source" json:"source"`
		Target           endpointShape `yaml:"target" json:"target"`
		Confidence       struct {
			Minimum     float64   `yaml:"minimum" json:"minimum"`
			Calculation string    `yaml:"calculation" json:"calculation"`
			Weights     []float64 `yaml:"weights" json:"weights"`
		} `yaml:"confidence" json:"confidence"`
		Constraints *struct {
			HierarchyLevel *int   `yaml:"hierarchy_level" json:"hierarchy_level"`
			Direction      string `yaml:"direction" json:"direction"`
		} `yaml:"constraints" json:"constraints"`
	} `yaml:"relationship_rules" json:"relationship_rules"`
}

type endpointShape struct {
	TermID              string   `yaml:"term_id" json:"term_id"`
	SemanticPhrase      string   `yaml:"semantic_phrase" json:"semantic_phrase"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold" json:"confidence_threshold"`
	ElementTypes        []string `yaml:"element_types" json:"element_types"`
}

// Loader loads and caches DomainOntology configurations by name, supporting
// both YAML and JSON, matching OntologyLoader's dual-format behavior.
type Loader struct {
	log        *logrus.Entry
	ontologies map[string]*Ontology
}

func NewLoader(log *logrus.Entry) *Loader {
	return &Loader{log: log.WithField("component", "ontology_loader"), ontologies: make(map[string]*Ontology)}
}

// LoadFromFile dispatches on file extension (.yaml/.yml vs .json) and
// caches the result by the ontology's declared name.
func (l *Loader) LoadFromFile(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ontology: read %s: %w", path, err)
	}

	format := "yaml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".json":
		format = "json"
	default:
		return nil, fmt.Errorf("ontology: unsupported file extension: %s", path)
	}

	ont, err := l.LoadFromString(string(data), format)
	if err != nil {
		return nil, fmt.Errorf("ontology: load %s: %w", path, err)
	}
	l.ontologies[ont.Name] = ont
	l.log.WithField("path", path).WithField("name", ont.Name).Info("loaded ontology")
	return ont, nil
}

// LoadFromString parses content in the given format ("yaml" or "json") and
// builds an Ontology, logging (not failing on) validation issues — matching
// load_from_dict, which warns rather than raises by default.
func (l *Loader) LoadFromString(content, format string) (*Ontology, error) {
	var shape fileShape
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal([]byte(content), &shape); err != nil {
			return nil, fmt.Errorf("ontology: parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal([]byte(content), &shape); err != nil {
			return nil, fmt.Errorf("ontology: parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("ontology: unsupported format: %s", format)
	}

	ont := fromShape(shape)
	if issues := ont.Validate(); len(issues) > 0 {
		l.log.WithField("issues", issues).Warn("ontology validation issues")
	}
	return ont, nil
}

// LoadDirectory loads every file matching pattern (default "*.yaml") under
// dir, logging and skipping files that fail to load rather than aborting
// the whole batch.
func (l *Loader) LoadDirectory(dir, pattern string) []*Ontology {
	if pattern == "" {
		pattern = "*.yaml"
	}
	matches, _ := filepath.Glob(filepath.Join(dir, pattern))
	var out []*Ontology
	for _, path := range matches {
		ont, err := l.LoadFromFile(path)
		if err != nil {
			l.log.WithError(err).WithField("path", path).Error("failed to load ontology")
			continue
		}
		out = append(out, ont)
	}
	return out
}

func (l *Loader) Get(name string) (*Ontology, bool) {
	ont, ok := l.ontologies[name]
	return ont, ok
}

func (l *Loader) List() []string {
	names := make([]string, 0, len(l.ontologies))
	for name := range l.ontologies {
		names = append(names, name)
	}
	return names
}

func fromShape(s fileShape) *Ontology {
	settings := DefaultSettings()
	if s.Domain.Settings.DefaultConfidenceThreshold != nil {
		settings.DefaultConfidenceThreshold = *s.Domain.Settings.DefaultConfidenceThreshold
	}
	if s.Domain.Settings.MinMappingConfidence != nil {
		settings.MinMappingConfidence = *s.Domain.Settings.MinMappingConfidence
	}
	if s.Domain.Settings.MaxRelationshipsPerPair != nil {
		settings.MaxRelationshipsPerPair = *s.Domain.Settings.MaxRelationshipsPerPair
	}
	if s.Domain.Settings.EnableTransitiveInference != nil {
		settings.EnableTransitiveInference = *s.Domain.Settings.EnableTransitiveInference
	}

	ont := &Ontology{
		Name:        s.Domain.Name,
		Version:     s.Domain.Version,
		Description: s.Domain.Description,
		Settings:    settings,
	}

	for _, t := range s.Terms {
		ont.Terms = append(ont.Terms, Term{ID: t.ID, Label: t.Label, Description: t.Description, Aliases: t.Aliases})
	}

	for _, m := range s.ElementMappings {
		mapping := ElementMapping{TermID: m.TermID}
		for _, r := range m.Rules {
			mapping.Rules = append(mapping.Rules, MappingRule{
				Type:                RuleType(r.Type),
				ElementTypes:        r.ElementTypes,
				SemanticPhrase:      r.SemanticPhrase,
				ConfidenceThreshold: r.ConfidenceThreshold,
				Pattern:             r.Pattern,
				CaseSensitive:       r.CaseSensitive,
				Keywords:            r.Keywords,
				WordBoundary:        r.WordBoundary,
			})
		}
		ont.Mappings = append(ont.Mappings, mapping)
	}

	for _, r := range s.RelationshipRules {
		rule := RelationshipRule{
			ID:               r.ID,
			RelationshipType: r.RelationshipType,
			Description:      r.Description,
			Bidirectional:    r.Bidirectional,
			Source:           Endpoint(r.Source),
			Target:           Endpoint(r.Target),
			Confidence: Confidence{
				Minimum:     r.Confidence.Minimum,
				Calculation: ConfidenceCalculation(r.Confidence.Calculation),
				Weights:     r.Confidence.Weights,
			},
		}
		if r.Constraints != nil {
			rule.Constraints = &Constraints{
				HierarchyLevel: r.Constraints.HierarchyLevel,
				Direction:      RelationshipDirection(r.Constraints.Direction),
			}
		}
		ont.Relations = append(ont.Relations, rule)
	}

	ont.buildLookups()
	return ont
}
