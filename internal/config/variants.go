package config

import (
	"fmt"
	"sort"
)

// DefaultVariant is used when no deployment variant is selected
const DefaultVariant = "default"

// variant is a per-deployment playlist and title
type variant struct {
	title    string
	basePath string
	songs    []Track
}

var variants = map[string]variant{
	"default": {
		title:    "Music",
		basePath: "assets/music/default",
		songs:    []Track{{ID: 1, Title: "Anh Den Pho", Filename: "anh_den_pho.mp3"}},
	},
	"nam": {
		title:    "Nam's Music",
		basePath: "assets/music/nam",
		songs:    []Track{{ID: 1, Title: "anh den pho", Filename: "anh_den_pho.mp3"}},
	},
	"vanh": {
		title:    "Vanh's Music",
		basePath: "assets/music/vanh",
		songs:    []Track{{ID: 1, Title: "Rain", Filename: "rain.mp3"}},
	},
	"yen": {
		title:    "Yen's Music",
		basePath: "assets/music/yen",
		songs:    []Track{{ID: 1, Title: "Anh Den Pho", Filename: "anh_den_pho.mp3"}},
	},
}

// Variants returns the names of the built-in deployment variants
func Variants() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyVariant replaces title, base path and songs with a built-in variant
func (c *Config) ApplyVariant(name string) error {
	v, ok := variants[name]
	if !ok {
		return fmt.Errorf("unknown variant: %s", name)
	}

	c.App.Variant = name
	c.App.Title = v.title
	c.Audio.BasePath = v.basePath
	c.Audio.Songs = append([]Track(nil), v.songs...)
	return nil
}
