package config

// ValidLocales contains the supported progress label locales.
var ValidLocales = []string{
	"zh", // Simplified Chinese sentinels (default)
	"en", // English sentinels
}

// DefaultLocale is the default label locale.
const DefaultLocale = "zh"

// IsValidLocale returns true if the locale name is supported.
func IsValidLocale(locale string) bool {
	for _, valid := range ValidLocales {
		if locale == valid {
			return true
		}
	}
	return false
}

// ValidateLocale returns the locale if valid, or the default if invalid.
func ValidateLocale(locale string) string {
	if IsValidLocale(locale) {
		return locale
	}
	return DefaultLocale
}
