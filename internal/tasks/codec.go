package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidContent = errors.New("invalid content")

// MigrationCanceledMessage is recorded when the user declines a legacy
// migration.
const MigrationCanceledMessage = "The legacy content migration has been canceled by the user. " +
	"Please reload this note to try again or switch to the Basic Checklist editor."

type ContentKind int

const (
	ContentUnrecognized ContentKind = iota
	ContentStructured
	ContentLegacy
)

func (k ContentKind) String() string {
	switch k {
	case ContentStructured:
		return "structured"
	case ContentLegacy:
		return "legacy"
	default:
		return "unrecognized"
	}
}

// Classification is the result of Classify. Legacy is set only for
// ContentLegacy.
type Classification struct {
	Kind   ContentKind
	Legacy *Group
}

// Classify decides how raw host text should be decoded: as a structured
// document, as a legacy checklist awaiting migration, or neither.
func Classify(raw string) Classification {
	if json.Valid([]byte(raw)) {
		return Classification{Kind: ContentStructured}
	}
	if group, ok := ParseLegacy(raw); ok {
		return Classification{Kind: ContentLegacy, Legacy: &group}
	}
	return Classification{Kind: ContentUnrecognized}
}

// Payload is the persisted document. Pointer fields distinguish absent
// values so decoding can apply defaults.
type Payload struct {
	SchemaVersion     *string         `json:"schemaVersion,omitempty" yaml:"schema_version,omitempty"`
	Groups            []Group         `json:"groups" yaml:"groups"`
	PrioritiesEnabled *bool           `json:"prioritiesEnabled,omitempty" yaml:"priorities_enabled,omitempty"`
	PriorityFilter    *PriorityFilter `json:"priorityFilter,omitempty" yaml:"priority_filter,omitempty"`
	Theme             *Theme          `json:"theme,omitempty" yaml:"theme,omitempty"`
}

// ParsePayload parses a structured document. The top-level value must be an
// object.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) > 0 && trimmed[0] != '{' && json.Valid(trimmed) {
		return p, fmt.Errorf("%w: top-level value is not an object", ErrInvalidContent)
	}
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return p, err
	}
	return p, nil
}

// decode implements ContentLoaded. It never fails; errors are recorded in
// LastError with the existing groups left in place.
func decode(s State, raw string) State {
	if raw == "" && !s.Initialized {
		raw = "{}"
	}
	next := s
	classified := Classify(raw)
	if classified.Kind == ContentLegacy {
		next.LegacyContent = classified.Legacy
		next.Initialized = false
		return next
	}

	p, err := ParsePayload(raw)
	if err != nil {
		next.Initialized = false
		next.LastError = fmt.Sprintf("An error has occurred while parsing the note's content: %v", err)
		return next
	}

	next.SchemaVersion = DefaultSchemaVersion
	if p.SchemaVersion != nil {
		next.SchemaVersion = *p.SchemaVersion
	}
	next.Groups = p.Groups
	if next.Groups == nil {
		next.Groups = []Group{}
	}
	next.PriorityFilter = FilterAll
	if p.PriorityFilter != nil {
		next.PriorityFilter = *p.PriorityFilter
	}
	next.PrioritiesEnabled = true
	if p.PrioritiesEnabled != nil {
		next.PrioritiesEnabled = *p.PrioritiesEnabled
	}
	if p.Theme != nil {
		next.Theme = *p.Theme
	}
	next.Initialized = true
	next.LegacyContent = nil
	next.LastError = ""
	return next
}

// Encode serializes the persistent part of s. Transient fields
// (Initialized, LegacyContent, LastError) are not written.
func Encode(s State) (string, error) {
	p := PayloadOf(s)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// PayloadOf returns the persisted view of s.
func PayloadOf(s State) Payload {
	schema := s.SchemaVersion
	if schema == "" {
		schema = DefaultSchemaVersion
	}
	groups := s.Groups
	if groups == nil {
		groups = []Group{}
	}
	enabled := s.PrioritiesEnabled
	filter := s.PriorityFilter
	if filter == "" {
		filter = FilterAll
	}
	p := Payload{
		SchemaVersion:     &schema,
		Groups:            groups,
		PrioritiesEnabled: &enabled,
		PriorityFilter:    &filter,
	}
	if s.Theme != "" {
		theme := s.Theme
		p.Theme = &theme
	}
	return p
}
