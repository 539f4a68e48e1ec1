package plugindomain

// RegistryDocument is the ordered collection of installed plugins as it is
// persisted in plugins/_registry.yaml
type RegistryDocument struct {
	Plugins []RegistryEntry `yaml:"plugins"`

	Extra map[string]interface{} `yaml:",inline"`
}

// NewRegistryDocument returns an empty document
func NewRegistryDocument() *RegistryDocument {
	return &RegistryDocument{Plugins: []RegistryEntry{}}
}

// Find returns the entry with the given sanitized name
func (d *RegistryDocument) Find(name string) (*RegistryEntry, bool) {
	for i := range d.Plugins {
		if d.Plugins[i].Name == name {
			return &d.Plugins[i], true
		}
	}
	return nil, false
}

// Remove deletes every entry with the given name and reports whether one existed
func (d *RegistryDocument) Remove(name string) bool {
	kept := d.Plugins[:0]
	removed := false
	for _, e := range d.Plugins {
		if e.Name == name {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	d.Plugins = kept
	return removed
}

// NextPriority is the priority a newly appended entry receives
func (d *RegistryDocument) NextPriority() int {
	return len(d.Plugins)*PriorityStep + PriorityStep
}

// Upsert replaces any entry of the same name and appends entry at the end
// of the list. The caller assigns the priority.
func (d *RegistryDocument) Upsert(entry RegistryEntry) {
	d.Remove(entry.Name)
	d.Plugins = append(d.Plugins, entry)
}
