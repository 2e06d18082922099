package models

// Language is the UI locale preference.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

// Valid reports whether l is a supported locale.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageArabic
}

// Default settings applied on first run and to fields missing from a stored document.
const (
	DefaultLanguage         = LanguageArabic
	DefaultPassThresholdPct = 60.0
	DefaultAbsenceThreshold = 3
	DefaultDateFormat       = "iso"
)

// User is an account entry kept in settings. The gradebook never evaluates it.
type User struct {
	Username     string `json:"username"`
	Role         string `json:"role"`
	Salt         string `json:"salt"`
	PasswordHash string `json:"password_hash"`
}

// Settings holds process-wide gradebook preferences.
type Settings struct {
	DefaultLanguage  Language `json:"default_language" validate:"oneof=en ar"`
	PassThresholdPct float64  `json:"pass_threshold_pct" validate:"gte=0,lte=100"`
	AbsenceThreshold int      `json:"absence_threshold" validate:"gte=0"`
	DateFormat       string   `json:"date_format"`
	AuthEnabled      bool     `json:"auth_enabled"`
	AuthUsername     string   `json:"auth_username"`
	AuthSalt         string   `json:"auth_salt"`
	AuthPasswordHash string   `json:"auth_password_hash"`
	Users            []User   `json:"users"`
}

// DefaultSettings returns the compiled-in settings.
func DefaultSettings() Settings {
	return Settings{
		DefaultLanguage:  DefaultLanguage,
		PassThresholdPct: DefaultPassThresholdPct,
		AbsenceThreshold: DefaultAbsenceThreshold,
		DateFormat:       DefaultDateFormat,
		Users:            []User{},
	}
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	clone := s
	clone.Users = append([]User{}, s.Users...)
	return clone
}

// SettingsPatch carries a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	DefaultLanguage  *Language `json:"default_language,omitempty"`
	PassThresholdPct *float64  `json:"pass_threshold_pct,omitempty"`
	AbsenceThreshold *int      `json:"absence_threshold,omitempty"`
	DateFormat       *string   `json:"date_format,omitempty"`
	AuthEnabled      *bool     `json:"auth_enabled,omitempty"`
	AuthUsername     *string   `json:"auth_username,omitempty"`
	AuthSalt         *string   `json:"auth_salt,omitempty"`
	AuthPasswordHash *string   `json:"auth_password_hash,omitempty"`
	Users            *[]User   `json:"users,omitempty"`
}

// Apply merges the non-nil fields of p into s.
func (p SettingsPatch) Apply(s Settings) Settings {
	merged := s.Clone()
	if p.DefaultLanguage != nil {
		merged.DefaultLanguage = *p.DefaultLanguage
	}
	if p.PassThresholdPct != nil {
		merged.PassThresholdPct = *p.PassThresholdPct
	}
	if p.AbsenceThreshold != nil {
		merged.AbsenceThreshold = *p.AbsenceThreshold
	}
	if p.DateFormat != nil {
		merged.DateFormat = *p.DateFormat
	}
	if p.AuthEnabled != nil {
		merged.AuthEnabled = *p.AuthEnabled
	}
	if p.AuthUsername != nil {
		merged.AuthUsername = *p.AuthUsername
	}
	if p.AuthSalt != nil {
		merged.AuthSalt = *p.AuthSalt
	}
	if p.AuthPasswordHash != nil {
		merged.AuthPasswordHash = *p.AuthPasswordHash
	}
	if p.Users != nil {
		merged.Users = append([]User{}, (*p.Users)...)
	}
	return merged
}
