package domain

import (
	"sort"
	"strings"
)

// Family is an entity kind with its own closed set of subtypes.
type Family struct {
	Name     string
	Title    string
	Subtypes []string
}

// ParseSubtype resolves s against the family's variants, ignoring case.
func (f Family) ParseSubtype(s string) (string, error) {
	for _, v := range f.Subtypes {
		if strings.EqualFold(v, s) {
			return v, nil
		}
	}
	return "", Validation(
		"The given subtype %q is invalid for %s. Valid values include: %s",
		s, f.Title, strings.Join(f.Subtypes, ", "),
	)
}

var families = map[string]Family{
	"chapters":                  {Name: "chapters", Title: "Chapter", Subtypes: []string{"Chapter", "Quest", "Mission"}},
	"geo-hotspots":              {Name: "geo-hotspots", Title: "GeoHotSpot", Subtypes: []string{"GeoHotSpot", "Park", "Landmark"}},
	"holons":                    {Name: "holons", Title: "Holon", Subtypes: []string{"Holon", "CelestialBody", "Zome"}},
	"nfts":                      {Name: "nfts", Title: "NFT", Subtypes: []string{"NFT", "GeoNFT"}},
	"oapps":                     {Name: "oapps", Title: "OAPP", Subtypes: []string{"OAPP", "Console", "WebMVC", "Unity"}},
	"plugins":                   {Name: "plugins", Title: "Plugin", Subtypes: []string{"Plugin", "Provider", "Extension"}},
	"runtimes":                  {Name: "runtimes", Title: "Runtime", Subtypes: []string{"OASIS", "STAR", "Holochain", "Ethereum"}},
	"templates":                 {Name: "templates", Title: "Template", Subtypes: []string{"OAPPTemplate", "Console", "WebMVC", "Unity"}},
	"libraries":                 {Name: "libraries", Title: "Library", Subtypes: []string{"Library", "Package"}},
	"zomes-metadata":            {Name: "zomes-metadata", Title: "Zome MetaData", Subtypes: []string{"ZomeMetaData"}},
	"holons-metadata":           {Name: "holons-metadata", Title: "Holon MetaData", Subtypes: []string{"HolonMetaData"}},
	"celestial-bodies-metadata": {Name: "celestial-bodies-metadata", Title: "Celestial Body MetaData", Subtypes: []string{"CelestialBodyMetaData"}},
}

func LookupFamily(name string) (Family, error) {
	f, ok := families[name]
	if !ok {
		return Family{}, NotFoundError{Resource: "family " + name}
	}
	return f, nil
}

// Families lists every family sorted by name.
func Families() []Family {
	list := make([]Family, 0, len(families))
	for _, f := range families {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
