package providers

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the capability a provider entry serves.
type Kind string

const (
	KindLLM Kind = "llm"
	KindSTT Kind = "stt"
	KindTTS Kind = "tts"
)

// Ref is a parsed provider/model selector, e.g. "openai/gpt-4o-mini".
type Ref struct {
	Provider string
	Model    string
}

// ParseRef parses a "provider/model" selector.
func ParseRef(s string) (Ref, error) {
	provider, model, ok := strings.Cut(s, "/")
	if !ok || provider == "" || model == "" {
		return Ref{}, fmt.Errorf("invalid model selector %q, want provider/model", s)
	}
	return Ref{Provider: provider, Model: model}, nil
}

// String returns the canonical selector form.
func (r Ref) String() string {
	return r.Provider + "/" + r.Model
}

// Entry describes one registered model.
type Entry struct {
	Ref      Ref    `json:"-"`
	Selector string `json:"selector"`
	Kind     Kind   `json:"kind"`
	Label    string `json:"label"`
	Realtime bool   `json:"realtime,omitempty"`
}

// Registry maps selectors to registered models per capability. Lookups are
// exact; unknown selectors are rejected rather than pattern-matched.
type Registry struct {
	entries map[Kind]map[string]Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Kind]map[string]Entry)}
}

// Register adds a model to the registry
func (r *Registry) Register(kind Kind, selector, label string, realtime bool) error {
	ref, err := ParseRef(selector)
	if err != nil {
		return err
	}

	if r.entries[kind] == nil {
		r.entries[kind] = make(map[string]Entry)
	}
	r.entries[kind][selector] = Entry{
		Ref:      ref,
		Selector: selector,
		Kind:     kind,
		Label:    label,
		Realtime: realtime,
	}

	return nil
}

// Resolve returns the entry for a selector, or an error naming the unknown
// selector and capability.
func (r *Registry) Resolve(kind Kind, selector string) (Entry, error) {
	entry, ok := r.entries[kind][selector]
	if !ok {
		return Entry{}, fmt.Errorf("unknown %s model %q", kind, selector)
	}
	return entry, nil
}

// List returns the registered entries for a capability, sorted by selector.
func (r *Registry) List(kind Kind) []Entry {
	var entries []Entry
	for _, e := range r.entries[kind] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Selector < entries[j].Selector
	})
	return entries
}

// Default returns the platform registry with the supported model set.
func Default() *Registry {
	r := NewRegistry()

	// LLMs
	r.Register(KindLLM, "openai/gpt-4o-mini", "GPT-4o mini", false)
	r.Register(KindLLM, "openai/gpt-4o", "GPT-4o", false)
	r.Register(KindLLM, "openai/gpt-4o-realtime-preview", "GPT-4o Realtime", true)

	// STT
	r.Register(KindSTT, "deepgram/nova-2", "Deepgram Nova 2", false)
	r.Register(KindSTT, "openai/whisper-1", "Whisper", false)

	// TTS
	r.Register(KindTTS, "openai/tts-1", "OpenAI TTS", false)
	r.Register(KindTTS, "elevenlabs/turbo-v2", "ElevenLabs Turbo", false)

	return r
}

// ValidateSelectors checks an agent's model selectors against the registry.
func (r *Registry) ValidateSelectors(llm, stt, tts string) error {
	if _, err := r.Resolve(KindLLM, llm); err != nil {
		return err
	}
	if _, err := r.Resolve(KindSTT, stt); err != nil {
		return err
	}
	if _, err := r.Resolve(KindTTS, tts); err != nil {
		return err
	}
	return nil
}
