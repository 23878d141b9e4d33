package models

// Theme names accepted in settings
const (
	ThemeDefault      = "default"
	ThemeDark         = "dark"
	ThemeProfessional = "professional"
	ThemeCustom       = "custom"
)

// Channel is one tracked interaction kind (applied, viewed, saved) and its highlight color
type Channel struct {
	Enabled bool   `json:"enabled"`
	Color   string `json:"color" validate:"hexcolor"`
}

// Tracking groups the tracked channels
type Tracking struct {
	Applied Channel `json:"applied"`
	Viewed  Channel `json:"viewed"`
	Saved   Channel `json:"saved"`
}

// Display holds page annotation toggles
type Display struct {
	ShowBadge        bool `json:"showBadge"`
	ShowBorder       bool `json:"showBorder"`
	ShowStatusColors bool `json:"showStatusColors"`
	CompactMode      bool `json:"compactMode"`
}

// Notifications configures follow-up reminders
type Notifications struct {
	Enabled      bool `json:"enabled"`
	ReminderDays int  `json:"reminderDays" validate:"min=0,max=365"`
}

// Filters hide postings from listings
type Filters struct {
	HideApplied     bool     `json:"hideApplied"`
	HideViewed      bool     `json:"hideViewed"`
	HideSaved       bool     `json:"hideSaved"`
	ExcludeKeywords []string `json:"excludeKeywords"`
}

// Settings are the user preferences, always structurally complete
type Settings struct {
	Tracking         Tracking          `json:"tracking"`
	Display          Display           `json:"display"`
	Theme            string            `json:"theme" validate:"oneof=default dark professional custom"`
	StatusColors     map[Status]string `json:"statusColors" validate:"dive,hexcolor"`
	Notifications    Notifications     `json:"notifications"`
	Filters          Filters           `json:"filters"`
	CompanyBlacklist []string          `json:"companyBlacklist" validate:"dive,required"`
}

// SettingsPatch replaces each non-nil top-level section of the current settings
type SettingsPatch struct {
	Tracking         *Tracking
	Display          *Display
	Theme            *string
	StatusColors     map[Status]string
	Notifications    *Notifications
	Filters          *Filters
	CompanyBlacklist []string
}

// DefaultSettings returns a fresh copy of the default preferences
func DefaultSettings() Settings {
	return Settings{
		Tracking: Tracking{
			Applied: Channel{Enabled: true, Color: "#ff0000"},
			Viewed:  Channel{Enabled: false, Color: "#ffd700"},
			Saved:   Channel{Enabled: false, Color: "#00c851"},
		},
		Display: Display{ShowBadge: true, ShowBorder: true, ShowStatusColors: true},
		Theme:   ThemeDefault,
		StatusColors: map[Status]string{
			StatusApplied:      "#772a2a",
			StatusInterviewing: "#2a4577",
			StatusOffer:        "#2a7745",
			StatusRejected:     "#666666",
			StatusWithdrawn:    "#999999",
		},
		Notifications:    Notifications{Enabled: false, ReminderDays: 7},
		Filters:          Filters{ExcludeKeywords: []string{}},
		CompanyBlacklist: []string{},
	}
}
