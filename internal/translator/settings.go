package translator

// Settings is an immutable snapshot of the translation configuration.
// Callers take one snapshot at the start of a request or queued task and
// thread it through every decision made on behalf of that operation, so a
// mid-flight settings change never produces a half-old, half-new outcome.
type Settings struct {
	Enabled            bool
	Provider           string
	AllowGuests        bool
	RateLimitPerMinute int
	// MaxPostLength is measured in characters of extracted plain text.
	// Zero disables the limit.
	MaxPostLength      int
	ExcludedCategories []int64
}

// CategoryExcluded reports whether posts in the given category are
// excluded from detection and translation.
func (s Settings) CategoryExcluded(categoryID int64) bool {
	for _, id := range s.ExcludedCategories {
		if id == categoryID {
			return true
		}
	}
	return false
}

// SettingsSource yields the current settings snapshot. The HTTP layer and
// the worker each call it exactly once per operation.
type SettingsSource interface {
	TranslatorSettings() Settings
}

// SettingsFunc adapts a function to the SettingsSource interface.
type SettingsFunc func() Settings

func (f SettingsFunc) TranslatorSettings() Settings {
	return f()
}
