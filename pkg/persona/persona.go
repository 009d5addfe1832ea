// Package persona owns the single validated Persona document: schema
// validation, canonical hashing, versioning, atomic on-disk writes and
// hot-reload. Validation is the only path to mutation (spec.md §4.1).
package persona

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/idgen"
)

// Persona is the single active persona document plus the content-free
// metadata (version, hash) the store stamps onto it.
type Persona struct {
	Version int    `json:"version"`
	Hash    string `json:"hash"`

	Handle      string             `json:"handle"`
	Mission     string             `json:"mission"`
	Beliefs     []string           `json:"beliefs"`
	Doctrine    []string           `json:"doctrine"`
	ToneRules   map[string]string  `json:"tone_rules"`
	ContentMix  map[string]float64 `json:"content_mix"`
	Templates   map[string]string  `json:"templates"`
	Guardrails  []string           `json:"guardrails"`
	Intensity   IntensitySettings  `json:"intensity_settings"`
	Drives      DriveWeights       `json:"drives"`
}

// IntensitySettings bounds the adaptive-intensity policy (§4.3).
type IntensitySettings struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DriveWeights biases action-type scoring in the Selector (§4.3).
type DriveWeights struct {
	Curiosity float64 `json:"curiosity"`
	Novelty   float64 `json:"novelty"`
	Impact    float64 `json:"impact"`
	Stability float64 `json:"stability"`
}

// Version is an immutable, previously-published Persona plus audit info.
type Version struct {
	Persona   Persona
	Actor     string
	CreatedAt time.Time
}

// Change describes one field difference between two persona versions,
// returned by Diff.
type Change struct {
	Field string
	Old   string
	New   string
}

// Store is the exclusive owner of the current Persona. All reads go
// through Current(), which hot-reloads from disk when the file changed.
type Store struct {
	mu       sync.RWMutex
	path     string
	current  Persona
	versions []Version
	notes    []NoteRing

	lastMtime time.Time
	lastHash  string
}

// NoteRing mirrors models.ImprovementNote without importing the models
// package, to keep persona dependency-free of the wider domain types.
type NoteRing struct {
	Text      string
	CreatedAt time.Time
}

const maxNotes = 100

// NewStore loads (or seeds) the persona at path and returns a ready Store.
func NewStore(path string, seed Persona) (*Store, error) {
	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		seed.Version = 1
		seed.Hash = CanonicalHash(seed)
		if err := s.atomicWrite(seed); err != nil {
			return nil, fmt.Errorf("persona: seed write: %w", err)
		}
		s.current = seed
		s.versions = append(s.versions, Version{Persona: seed, Actor: "system", CreatedAt: time.Now()})
		return s, nil
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active persona, reloading from disk first if the
// file's mtime or canonical hash changed since the last read (§4.1
// hot-reload). On parse/validation failure the cached document is kept
// and the error is returned for the caller to log; it is never served
// partially-updated.
func (s *Store) Current() (Persona, error) {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.current, nil
	}

	s.mu.RLock()
	changed := info.ModTime().After(s.lastMtime)
	s.mu.RUnlock()
	if !changed {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.current, nil
	}

	if err := s.reload(); err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.current, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *Store) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("persona: read: %w", err)
	}
	var p Persona
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("persona: parse: %w", err)
	}
	if err := Validate(p); err != nil {
		return fmt.Errorf("persona: validate: %w", err)
	}
	h := CanonicalHash(p)
	info, statErr := os.Stat(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if h == s.lastHash && !s.current.isZero() {
		if statErr == nil {
			s.lastMtime = info.ModTime()
		}
		return nil
	}
	s.current = p
	s.lastHash = h
	if statErr == nil {
		s.lastMtime = info.ModTime()
	}
	return nil
}

func (p Persona) isZero() bool {
	return p.Handle == "" && p.Version == 0
}

// Preview validates a candidate payload without committing it, returning
// the validated persona plus a short excerpt of the system prompt it
// would produce.
func (s *Store) Preview(payload Persona) (Persona, string, error) {
	if err := Validate(payload); err != nil {
		return Persona{}, "", err
	}
	payload.Hash = CanonicalHash(payload)
	prompt := s.buildSystemPrompt(payload, nil)
	excerpt := prompt
	if len(excerpt) > 280 {
		excerpt = excerpt[:280] + "…"
	}
	return payload, excerpt, nil
}

// Update validates payload, stamps the next version and hash, writes it
// atomically and appends an audit Version row.
func (s *Store) Update(payload Persona, actor string) (int, error) {
	if err := Validate(payload); err != nil {
		return 0, err
	}
	s.mu.Lock()
	nextVersion := s.current.Version + 1
	payload.Version = nextVersion
	payload.Hash = CanonicalHash(payload)
	s.mu.Unlock()

	if err := s.atomicWrite(payload); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.current = payload
	s.lastHash = payload.Hash
	if info, err := os.Stat(s.path); err == nil {
		s.lastMtime = info.ModTime()
	}
	s.versions = append(s.versions, Version{Persona: payload, Actor: actor, CreatedAt: time.Now()})
	v := s.current.Version
	s.mu.Unlock()
	return v, nil
}

// Rollback re-publishes a prior version's content under a new, strictly
// increasing version number (P2) — history is never rewritten.
func (s *Store) Rollback(v int, actor string) (int, error) {
	s.mu.RLock()
	var target *Persona
	for _, ver := range s.versions {
		if ver.Persona.Version == v {
			p := ver.Persona
			target = &p
			break
		}
	}
	s.mu.RUnlock()
	if target == nil {
		return 0, fmt.Errorf("persona: version %d not found", v)
	}
	restored := *target
	return s.Update(restored, actor)
}

// Versions returns every published version, oldest first.
func (s *Store) Versions() []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Version, len(s.versions))
	copy(out, s.versions)
	return out
}

// Diff compares two versions field by field.
func (s *Store) Diff(v1, v2 int) ([]Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var a, b *Persona
	for _, ver := range s.versions {
		if ver.Persona.Version == v1 {
			p := ver.Persona
			a = &p
		}
		if ver.Persona.Version == v2 {
			p := ver.Persona
			b = &p
		}
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("persona: version not found")
	}
	var changes []Change
	if a.Handle != b.Handle {
		changes = append(changes, Change{Field: "handle", Old: a.Handle, New: b.Handle})
	}
	if a.Mission != b.Mission {
		changes = append(changes, Change{Field: "mission", Old: a.Mission, New: b.Mission})
	}
	if strings.Join(a.Beliefs, "|") != strings.Join(b.Beliefs, "|") {
		changes = append(changes, Change{Field: "beliefs", Old: strings.Join(a.Beliefs, "; "), New: strings.Join(b.Beliefs, "; ")})
	}
	if strings.Join(a.Doctrine, "|") != strings.Join(b.Doctrine, "|") {
		changes = append(changes, Change{Field: "doctrine", Old: strings.Join(a.Doctrine, " → "), New: strings.Join(b.Doctrine, " → ")})
	}
	return changes, nil
}

// atomicWrite follows the write-tmp, fsync, rename pattern (§4.1).
func (s *Store) atomicWrite(p Persona) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// BuildSystemPrompt returns the deterministic system-prompt concatenation
// described in §4.1, pulling in at most the last 5 improvement notes.
func (s *Store) BuildSystemPrompt(notes []NoteRing) string {
	s.mu.RLock()
	p := s.current
	s.mu.RUnlock()
	return s.buildSystemPrompt(p, notes)
}

// RecentNotes returns the last n improvement notes (oldest first).
func (s *Store) RecentNotes(n int) []NoteRing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.notes) {
		n = len(s.notes)
	}
	out := make([]NoteRing, n)
	copy(out, s.notes[len(s.notes)-n:])
	return out
}

// AddNote appends a reflection note to the capped ring (§4.1 supplement:
// nightly reflection).
func (s *Store) AddNote(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = AppendNote(s.notes, NewNote(text))
}

func (s *Store) buildSystemPrompt(p Persona, notes []NoteRing) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(p.Handle)
	b.WriteString(". Mission: ")
	b.WriteString(p.Mission)
	b.WriteString("\n\nBeliefs:\n")
	for _, belief := range p.Beliefs {
		b.WriteString("- ")
		b.WriteString(belief)
		b.WriteString("\n")
	}
	b.WriteString("\nDoctrine: ")
	b.WriteString(strings.Join(p.Doctrine, " → "))
	b.WriteString("\n\nTone rules:\n")
	keys := sortedKeys(p.ToneRules)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, p.ToneRules[k])
	}
	b.WriteString("\nTemplates:\n")
	for _, k := range sortedKeys(p.Templates) {
		fmt.Fprintf(&b, "- %s: %s\n", k, p.Templates[k])
	}
	b.WriteString("\nGuardrails:\n")
	for _, g := range p.Guardrails {
		b.WriteString("- ")
		b.WriteString(g)
		b.WriteString("\n")
	}
	if len(notes) > 0 {
		if len(notes) > 5 {
			notes = notes[len(notes)-5:]
		}
		b.WriteString("\nRecent improvement notes:\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n.Text)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nContent mix:\n")
	for _, k := range sortedKeys(p.ContentMix) {
		fmt.Fprintf(&b, "- %s: %.0f%%\n", k, p.ContentMix[k]*100)
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate enforces the payload invariants from §4.1: content_mix sums
// to 1.0 within ±0.05, handle is <=15 alphanumerics, no empty belief.
func Validate(p Persona) error {
	sum := 0.0
	for _, v := range p.ContentMix {
		if v < 0 {
			return fmt.Errorf("persona: content_mix values must be >= 0")
		}
		sum += v
	}
	if len(p.ContentMix) > 0 && math.Abs(sum-1.0) > 0.05 {
		return fmt.Errorf("persona: content_mix sums to %.3f, want within 0.95..1.05", sum)
	}
	if len(p.Handle) == 0 || len(p.Handle) > 15 {
		return fmt.Errorf("persona: handle must be 1..15 chars")
	}
	for _, r := range p.Handle {
		if !isAlphanumeric(r) {
			return fmt.Errorf("persona: handle must be alphanumeric")
		}
	}
	for i, belief := range p.Beliefs {
		if strings.TrimSpace(belief) == "" {
			return fmt.Errorf("persona: belief[%d] is empty", i)
		}
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// CanonicalHash is a canonical-JSON SHA-256 truncated to 16 hex chars.
// Equal content-fields (irrespective of map/field ordering) MUST hash
// equal (P1); version/hash themselves are excluded from the digest.
func CanonicalHash(p Persona) string {
	content := struct {
		Handle     string             `json:"handle"`
		Mission    string             `json:"mission"`
		Beliefs    []string           `json:"beliefs"`
		Doctrine   []string           `json:"doctrine"`
		ToneRules  map[string]string  `json:"tone_rules"`
		ContentMix map[string]float64 `json:"content_mix"`
		Templates  map[string]string  `json:"templates"`
		Guardrails []string           `json:"guardrails"`
		Intensity  IntensitySettings  `json:"intensity_settings"`
		Drives     DriveWeights       `json:"drives"`
	}{
		Handle: p.Handle, Mission: p.Mission, Beliefs: p.Beliefs, Doctrine: p.Doctrine,
		ToneRules: p.ToneRules, ContentMix: p.ContentMix, Templates: p.Templates,
		Guardrails: p.Guardrails, Intensity: p.Intensity, Drives: p.Drives,
	}
	canon := canonicalize(content)
	raw, _ := json.Marshal(canon)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum)[:16]
}

// canonicalize round-trips through a map so that json.Marshal emits keys
// in sorted order regardless of struct field order or input map order
// (encoding/json already sorts map keys; this guarantees it applies
// recursively to nested maps too).
func canonicalize(v any) any {
	raw, _ := json.Marshal(v)
	var generic any
	_ = json.Unmarshal(raw, &generic)
	return generic
}

// NewNote constructs a NoteRing entry with a fresh id (id kept for parity
// with models.ImprovementNote; the ring itself only needs text+time).
func NewNote(text string) NoteRing {
	_ = idgen.XID()
	return NoteRing{Text: text, CreatedAt: time.Now()}
}

// AppendNote pushes a note onto the capped ring (default 100), dropping
// the oldest first.
func AppendNote(ring []NoteRing, n NoteRing) []NoteRing {
	ring = append(ring, n)
	if len(ring) > maxNotes {
		ring = ring[len(ring)-maxNotes:]
	}
	return ring
}
