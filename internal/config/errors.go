package config

import "fmt"

// ConfigError reports a missing or malformed field in one input record.
type ConfigError struct {
	Kind   string // "template", "platform", "editor", "package", "constants"
	Index  int    // position of the record in its list, -1 when not applicable
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing required key"
	}
	if e.Index < 0 {
		return fmt.Sprintf("config: %s: %s %q", e.Kind, reason, e.Key)
	}
	return fmt.Sprintf("config: %s[%d]: %s %q", e.Kind, e.Index, reason, e.Key)
}

// UnresolvedRevisionError is returned when an editor track matches none of
// the revision rules.
type UnresolvedRevisionError struct {
	Track string
	OS    string
}

func (e *UnresolvedRevisionError) Error() string {
	return fmt.Sprintf("cannot resolve editor revision for track %q on %q", e.Track, e.OS)
}
