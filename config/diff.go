package config

import "reflect"

// ChangeKind classifies the difference between two configurations, deciding
// how a reload is applied.
type ChangeKind int

const (
	// ChangeNone means the configurations are identical.
	ChangeNone ChangeKind = iota
	// ChangeFilterParams means only scalar parameters of existing
	// filters/mixers/processors changed; instances update in place.
	ChangeFilterParams
	// ChangePipeline means the pipeline layout or the set of definitions
	// changed; the instance tree is rebuilt.
	ChangePipeline
	// ChangeDevices means the device section changed; the engine restarts.
	ChangeDevices
)

// Change describes a reload delta.
type Change struct {
	Kind ChangeKind

	// Names of definitions whose parameters changed, for ChangeFilterParams.
	Filters    []string
	Mixers     []string
	Processors []string
}

// Diff compares two configurations for hot-reload classification.
func Diff(old, new *Config) Change {
	if old == nil {
		return Change{Kind: ChangeDevices}
	}
	if !reflect.DeepEqual(old.Devices, new.Devices) {
		return Change{Kind: ChangeDevices}
	}
	if !reflect.DeepEqual(old.Pipeline, new.Pipeline) {
		return Change{Kind: ChangePipeline}
	}
	if !sameKeys(keysOfFilters(old.Filters), keysOfFilters(new.Filters)) ||
		!sameKeys(keysOfMixers(old.Mixers), keysOfMixers(new.Mixers)) ||
		!sameKeys(keysOfProcessors(old.Processors), keysOfProcessors(new.Processors)) {
		return Change{Kind: ChangePipeline}
	}

	var change Change
	for name, filt := range new.Filters {
		if prev := old.Filters[name]; !reflect.DeepEqual(prev, filt) {
			if prev.Type != filt.Type {
				return Change{Kind: ChangePipeline}
			}
			change.Filters = append(change.Filters, name)
		}
	}
	for name, mix := range new.Mixers {
		if prev := old.Mixers[name]; !reflect.DeepEqual(prev, mix) {
			if prev.Channels != mix.Channels {
				return Change{Kind: ChangePipeline}
			}
			change.Mixers = append(change.Mixers, name)
		}
	}
	for name, proc := range new.Processors {
		if prev := old.Processors[name]; !reflect.DeepEqual(prev, proc) {
			if prev.Type != proc.Type {
				return Change{Kind: ChangePipeline}
			}
			change.Processors = append(change.Processors, name)
		}
	}
	if len(change.Filters) == 0 && len(change.Mixers) == 0 && len(change.Processors) == 0 {
		return Change{Kind: ChangeNone}
	}
	change.Kind = ChangeFilterParams
	return change
}

func keysOfFilters(m map[string]Filter) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func keysOfMixers(m map[string]Mixer) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func keysOfProcessors(m map[string]Processor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[k] = true
	}
	for _, k := range b {
		if !set[k] {
			return false
		}
	}
	return true
}
