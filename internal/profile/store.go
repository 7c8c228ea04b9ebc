package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const defaultTimeout = 30

// Store holds every profile from one backing file, in file order. All
// mutations rewrite the file whole; profile counts are small enough that
// incremental diffing would buy nothing.
type Store struct {
	path     string
	profiles []*Profile
	getenv   func(string) string
}

// Open discovers the store file on the standard search path and loads
// it. A missing file yields an empty store that will be created at the
// default location on first mutation.
func Open() (*Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	home, _ := os.UserHomeDir()
	path := findStoreFile(cwd, os.Getenv, home)
	if path == "" {
		path = DefaultWritePath(os.Getenv, home)
	}
	return OpenPath(path)
}

// OpenPath loads the store from an explicit file path.
func OpenPath(path string) (*Store, error) {
	s := &Store{path: path, getenv: os.Getenv}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// profileYAML is the on-disk shape of one profile. Pointer fields
// distinguish "absent" from zero so defaults apply only when unset.
type profileYAML struct {
	URL       string         `yaml:"url"`
	DB        string         `yaml:"db"`
	Username  string         `yaml:"username"`
	Password  string         `yaml:"password"`
	Timeout   *int           `yaml:"timeout,omitempty"`
	VerifySSL *bool          `yaml:"verify_ssl,omitempty"`
	Default   bool           `yaml:"default,omitempty"`
	ReadOnly  bool           `yaml:"readonly,omitempty"`
	Protected bool           `yaml:"protected,omitempty"`
	Context   map[string]any `yaml:"context,omitempty"`
}

// load parses the backing file. The top-level "profiles" mapping is
// walked through yaml.Node so file order survives: "first profile in
// store" is a documented selection fallback.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("profile: read store %s: %w", s.path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("profile: parse store %s: %w", s.path, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "profiles" {
			continue
		}
		mapping := root.Content[i+1]
		if mapping.Kind != yaml.MappingNode {
			return nil
		}
		for j := 0; j+1 < len(mapping.Content); j += 2 {
			name := mapping.Content[j].Value
			var raw profileYAML
			if err := mapping.Content[j+1].Decode(&raw); err != nil {
				return fmt.Errorf("profile: parse profile %q: %w", name, err)
			}
			s.profiles = append(s.profiles, fromYAML(name, raw))
		}
		return nil
	}
	return nil
}

func fromYAML(name string, raw profileYAML) *Profile {
	p := &Profile{
		Name:      name,
		URL:       raw.URL,
		DB:        raw.DB,
		Username:  raw.Username,
		Password:  raw.Password,
		Timeout:   defaultTimeout,
		VerifySSL: true,
		Default:   raw.Default,
		ReadOnly:  raw.ReadOnly,
		Protected: raw.Protected,
		Context:   raw.Context,
	}
	if raw.Timeout != nil {
		p.Timeout = *raw.Timeout
	}
	if raw.VerifySSL != nil {
		p.VerifySSL = *raw.VerifySSL
	}
	return p
}

// save rewrites the whole store atomically: marshal to a temp file in
// the same directory, then rename over the original.
func (s *Store) save() error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range s.profiles {
		raw := profileYAML{
			URL:      p.URL,
			DB:       p.DB,
			Username: p.Username,
			Password: p.Password,
			Timeout:  &p.Timeout,
			Default:  p.Default,
			ReadOnly: p.ReadOnly,
		}
		verify := p.VerifySSL
		raw.VerifySSL = &verify
		raw.Protected = p.Protected
		raw.Context = p.Context

		var value yaml.Node
		if err := value.Encode(raw); err != nil {
			return fmt.Errorf("profile: encode %q: %w", p.Name, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: p.Name},
			&value,
		)
	}

	doc := map[string]*yaml.Node{"profiles": root}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("profile: marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("profile: create config dir: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("profile: write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("profile: replace store: %w", err)
	}
	return nil
}

// Names lists profile names in store order.
func (s *Store) Names() []string {
	names := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// Len reports how many profiles are stored.
func (s *Store) Len() int { return len(s.profiles) }

// All returns copies of every profile in file order.
func (s *Store) All() []Profile {
	out := make([]Profile, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = *p
	}
	return out
}

func (s *Store) byName(name string) *Profile {
	for _, p := range s.profiles {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Get returns the profile with the given name.
func (s *Store) Get(name string) (Profile, error) {
	p := s.byName(name)
	if p == nil {
		return Profile{}, fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	return *p, nil
}

// Find selects a profile. Precedence: explicit name, ODOO_PROFILE
// environment override, the profile flagged default, then the first
// profile in the store. The boolean is false when nothing matches.
func (s *Store) Find(name string) (Profile, bool) {
	if name != "" {
		if p := s.byName(name); p != nil {
			return *p, true
		}
		return Profile{}, false
	}

	if env := s.getenv("ODOO_PROFILE"); env != "" {
		if p := s.byName(env); p != nil {
			return *p, true
		}
	}

	for _, p := range s.profiles {
		if p.Default {
			return *p, true
		}
	}

	if len(s.profiles) > 0 {
		return *s.profiles[0], true
	}
	return Profile{}, false
}

// ActiveName returns the name Find would select, or "".
func (s *Store) ActiveName(explicit string) string {
	if p, ok := s.Find(explicit); ok {
		return p.Name
	}
	return ""
}

// Add stores a new profile. Requesting default clears the flag on every
// other profile first; uniqueness of the default flag is an invariant.
func (s *Store) Add(p Profile) error {
	if s.byName(p.Name) != nil {
		return fmt.Errorf("profile %q: %w", p.Name, ErrExists)
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.Default {
		s.clearDefaults()
	}
	s.profiles = append(s.profiles, &p)
	return s.save()
}

// Update applies a partial edit. Protected profiles are rejected
// outright. Flipping readonly off requires confirmed=true; without it
// the store is left untouched and a *ConfirmationError is returned for
// the caller to re-prompt with.
func (s *Store) Update(name string, u Updates, confirmed bool) error {
	p := s.byName(name)
	if p == nil {
		return fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	if p.Protected {
		return fmt.Errorf("profile %q: %w", name, ErrProtected)
	}

	if u.ReadOnly != nil && !*u.ReadOnly && p.ReadOnly && !confirmed {
		return &ConfirmationError{
			Name: name,
			Warning: "this will allow create, write, unlink and copy operations " +
				"on this profile",
		}
	}

	if u.URL != nil && *u.URL != "" {
		p.URL = *u.URL
	}
	if u.DB != nil && *u.DB != "" {
		p.DB = *u.DB
	}
	if u.Username != nil && *u.Username != "" {
		p.Username = *u.Username
	}
	if u.Password != nil && *u.Password != "" {
		p.Password = *u.Password
	}
	if u.Timeout != nil {
		p.Timeout = *u.Timeout
	}
	if u.VerifySSL != nil {
		p.VerifySSL = *u.VerifySSL
	}
	if u.ReadOnly != nil {
		p.ReadOnly = *u.ReadOnly
	}
	if u.Default != nil {
		if *u.Default {
			s.clearDefaults()
		}
		p.Default = *u.Default
	}

	return s.save()
}

// Delete removes a profile. Protected profiles cannot be deleted here;
// editing the backing file directly is the only way out.
func (s *Store) Delete(name string) error {
	p := s.byName(name)
	if p == nil {
		return fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	if p.Protected {
		return fmt.Errorf("profile %q: %w", name, ErrProtected)
	}

	kept := s.profiles[:0]
	for _, existing := range s.profiles {
		if existing.Name != name {
			kept = append(kept, existing)
		}
	}
	s.profiles = kept
	return s.save()
}

// Rename changes a profile's name, preserving every other field.
func (s *Store) Rename(oldName, newName string) error {
	p := s.byName(oldName)
	if p == nil {
		return fmt.Errorf("profile %q: %w", oldName, ErrNotFound)
	}
	if s.byName(newName) != nil {
		return fmt.Errorf("profile %q: %w", newName, ErrExists)
	}
	if p.Protected {
		return fmt.Errorf("profile %q: %w", oldName, ErrProtected)
	}

	p.Name = newName
	return s.save()
}

// SetDefault marks one profile as the default, clearing the flag
// everywhere else in the same rewrite.
func (s *Store) SetDefault(name string) error {
	p := s.byName(name)
	if p == nil {
		return fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	s.clearDefaults()
	p.Default = true
	return s.save()
}

func (s *Store) clearDefaults() {
	for _, p := range s.profiles {
		p.Default = false
	}
}
