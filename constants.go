package flux

import "sort"

// Suffixes appended to every name by [CreateConstants].
const (
	SuffixStarting = "_STARTING"
	SuffixDone     = "_DONE"
	SuffixFailed   = "_FAILED"
)

// Constants maps constant names to their values.
type Constants map[string]string

// ConstantGroups maps group names to [Constants].
type ConstantGroups map[string]Constants

// CreateConstants builds the action type constants for names.
//
// For every name N the result holds N, N_STARTING, N_DONE and N_FAILED,
// each with a value equal to its key. Empty names are skipped. The function
// is pure: equal inputs give equal outputs.
//
// Example:
//
//	c := flux.CreateConstants("RECEIVE_USER")
//	c["RECEIVE_USER_DONE"] // "RECEIVE_USER_DONE"
func CreateConstants(names ...string) Constants {
	c := make(Constants, len(names)*4)
	for _, name := range names {
		if name == "" {
			continue
		}
		for _, key := range []string{name, name + SuffixStarting, name + SuffixDone, name + SuffixFailed} {
			c[key] = key
		}
	}
	return c
}

// CreateConstantGroups applies [CreateConstants] to every group.
func CreateConstantGroups(groups map[string][]string) ConstantGroups {
	out := make(ConstantGroups, len(groups))
	for group, names := range groups {
		out[group] = CreateConstants(names...)
	}
	return out
}

// Names returns the constant names in sorted order.
func (c Constants) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is defined.
func (c Constants) Has(name string) bool {
	_, ok := c[name]
	return ok
}
