package config

// SubdomainPrefixes lists the subdomain variants each blocked domain
// is expanded into, so blocking x.com also covers www.x.com, the
// mobile site, and the API endpoints apps fall back to.
var SubdomainPrefixes = []string{"", "www.", "m.", "api.", "mobile.", "app."}

// Preset is a named, built-in bundle of domains and apps for a
// category of distraction.
type Preset struct {
	Name        string
	Description string
	Domains     []string
	Apps        []string
}

// ExpandDomains returns every domain with every subdomain prefix
// applied.
func (p Preset) ExpandDomains() []string {
	expanded := make([]string, 0, len(p.Domains)*len(SubdomainPrefixes))
	for _, domain := range p.Domains {
		for _, prefix := range SubdomainPrefixes {
			expanded = append(expanded, prefix+domain)
		}
	}
	return expanded
}

// Presets holds the built-in category presets.
var Presets = map[string]Preset{
	"social": {
		Name:        "social",
		Description: "Social media platforms",
		Domains: []string{
			"x.com", "twitter.com", "facebook.com", "instagram.com",
			"tiktok.com", "reddit.com", "threads.net", "snapchat.com",
			"linkedin.com",
		},
		Apps: []string{"Discord"},
	},
	"entertainment": {
		Name:        "entertainment",
		Description: "Streaming and entertainment",
		Domains: []string{
			"youtube.com", "netflix.com", "twitch.tv", "hulu.com",
			"disneyplus.com", "primevideo.com", "spotify.com",
		},
		Apps: []string{"Spotify"},
	},
	"news": {
		Name:        "news",
		Description: "News websites",
		Domains: []string{
			"news.ycombinator.com", "cnn.com", "bbc.com", "nytimes.com",
			"theguardian.com",
		},
	},
	"communication": {
		Name:        "communication",
		Description: "Messaging, email, and chat",
		Domains: []string{
			"web.whatsapp.com", "whatsapp.com", "mail.google.com",
			"gmail.com", "mail.superhuman.com", "superhuman.com",
		},
		Apps: []string{"WhatsApp", "Messages", "Superhuman", "Mail"},
	},
	"gaming": {
		Name:        "gaming",
		Description: "Gaming platforms",
		Domains: []string{
			"steampowered.com", "store.steampowered.com", "epicgames.com",
			"riotgames.com",
		},
		Apps: []string{"Steam", "Epic Games Launcher"},
	},
}

// GetPreset looks up a built-in preset by name.
func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

// ListPresets returns every built-in preset.
func ListPresets() []Preset {
	out := make([]Preset, 0, len(Presets))
	for _, p := range Presets {
		out = append(out, p)
	}
	return out
}
