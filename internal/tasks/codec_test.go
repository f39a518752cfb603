package tasks

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  string
		want ContentKind
	}{
		{`{"groups":[]}`, ContentStructured},
		{`[1,2]`, ContentStructured},
		{"- [ ] legacy item", ContentLegacy},
		{"hello world", ContentUnrecognized},
		{"{broken", ContentUnrecognized},
	}
	for _, tc := range cases {
		got := Classify(tc.raw)
		if got.Kind != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.raw, got.Kind, tc.want)
		}
		if (got.Legacy != nil) != (tc.want == ContentLegacy) {
			t.Fatalf("Classify(%q) legacy group mismatch", tc.raw)
		}
	}
}

func TestDecodeEmptyOnFreshEngine(t *testing.T) {
	s := Reduce(NewState(), ContentLoaded{Raw: ""})
	if !s.Initialized || s.LastError != "" {
		t.Fatalf("expected initialized state without error, got %#v", s)
	}
	if s.Groups == nil || len(s.Groups) != 0 {
		t.Fatalf("expected empty non-nil groups, got %#v", s.Groups)
	}
	if s.SchemaVersion != DefaultSchemaVersion || s.PriorityFilter != FilterAll || !s.PrioritiesEnabled {
		t.Fatalf("expected defaults, got %#v", s)
	}
}

func TestDecodeAppliesDefaults(t *testing.T) {
	raw := `{"groups":[{"name":"Work","tasks":null},{"name":"Home","hideCompleted":false,"tasks":[{"id":"a","description":"x","completed":false,"createdAt":"2024-01-02T03:04:05Z"}]}]}`
	s := Reduce(NewState(), ContentLoaded{Raw: raw})
	if !s.Initialized {
		t.Fatalf("expected initialized, error %q", s.LastError)
	}
	work := mustGroup(t, s, "Work")
	if !work.HideCompleted || work.Tasks == nil {
		t.Fatalf("expected backfilled defaults, got %#v", work)
	}
	home := mustGroup(t, s, "Home")
	if home.HideCompleted {
		t.Fatalf("explicit hideCompleted=false must be kept")
	}
	if home.Tasks[0].Priority.Normalize() != PriorityNone {
		t.Fatalf("missing priority should read as none")
	}
}

func TestDecodeUnrecognizedKeepsGroups(t *testing.T) {
	s := loadedState(Group{Name: "Keep", Tasks: []Task{{ID: "a"}}})
	next := Reduce(s, ContentLoaded{Raw: "definitely not a document"})
	if next.Initialized {
		t.Fatalf("expected uninitialized after parse failure")
	}
	if !strings.HasPrefix(next.LastError, "An error has occurred while parsing the note's content:") {
		t.Fatalf("unexpected error message %q", next.LastError)
	}
	if !reflect.DeepEqual(next.Groups, s.Groups) {
		t.Fatalf("groups must be left untouched")
	}
}

func TestDecodeNonObjectIsError(t *testing.T) {
	_, err := ParsePayload(`[1,2,3]`)
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
	s := Reduce(NewState(), ContentLoaded{Raw: `"just a string"`})
	if s.Initialized || s.LastError == "" {
		t.Fatalf("expected parse error recorded, got %#v", s)
	}
}

func TestDecodeEmptyAfterInitIsError(t *testing.T) {
	s := loadedState(Group{Name: "G", Tasks: []Task{}})
	next := Reduce(s, ContentLoaded{Raw: ""})
	if next.Initialized || next.LastError == "" {
		t.Fatalf("empty text after initialization must be reported, got %#v", next)
	}
}

func TestDecodeClearsStaleError(t *testing.T) {
	s := Reduce(NewState(), ContentLoaded{Raw: "garbage"})
	s = Reduce(s, ContentLoaded{Raw: `{"groups":[]}`})
	if !s.Initialized || s.LastError != "" {
		t.Fatalf("expected successful load to clear the error, got %#v", s)
	}
}

func TestDecodeKeepsThemeWhenAbsent(t *testing.T) {
	s := loadedState()
	s.Theme = ThemeDark
	next := Reduce(s, ContentLoaded{Raw: `{"groups":[]}`})
	if next.Theme != ThemeDark {
		t.Fatalf("expected theme kept, got %q", next.Theme)
	}
	next = Reduce(s, ContentLoaded{Raw: `{"groups":[],"theme":"light"}`})
	if next.Theme != ThemeLight {
		t.Fatalf("expected theme from document, got %q", next.Theme)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	done := created.Add(time.Hour)
	s := loadedState(
		Group{Name: "Work <&>", Collapsed: true, HideCompleted: false, ShowProgress: true, Draft: "draft", LastActive: &done, Tasks: []Task{
			{ID: "a", Description: "ship it", Priority: PriorityHigh, CreatedAt: created},
			{ID: "b", Description: "done", Completed: true, Priority: PriorityNone, CreatedAt: created, UpdatedAt: &done, CompletedAt: &done},
		}},
		Group{Name: "Empty", Tasks: []Task{}, HideCompleted: true},
	)
	s.PrioritiesEnabled = false
	s.Theme = ThemeDark

	raw, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(raw, `\u003c`) || !strings.Contains(raw, `Work <&>`) {
		t.Fatalf("html characters must not be escaped: %s", raw)
	}
	back := Reduce(NewState(), ContentLoaded{Raw: raw})
	if !back.Initialized {
		t.Fatalf("decode failed: %s", back.LastError)
	}
	if !reflect.DeepEqual(PayloadOf(back), PayloadOf(s)) {
		t.Fatalf("round trip mismatch:\n%#v\n%#v", PayloadOf(back), PayloadOf(s))
	}
}

func TestEncodeOmitsTransientFields(t *testing.T) {
	s := NewState()
	s.LastError = "boom"
	s.LegacyContent = &Group{Name: "x"}
	raw, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		t.Fatalf("encoded document is not an object: %v", err)
	}
	for _, key := range []string{"initialized", "legacyContent", "lastError", "LastError"} {
		if _, ok := fields[key]; ok {
			t.Fatalf("transient field %q was written", key)
		}
	}
	for _, key := range []string{"schemaVersion", "groups", "prioritiesEnabled", "priorityFilter"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected field %q", key)
		}
	}
	if _, ok := fields["theme"]; ok {
		t.Fatalf("unset theme must be omitted")
	}
}
