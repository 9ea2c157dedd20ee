package domain

// WellKnown describes a node at /.well-known/starnet.
type WellKnown struct {
	Version   string              `json:"version"`
	Domain    string              `json:"domain"`
	Address   string              `json:"address,omitempty"`
	Families  []FamilyInfo        `json:"families"`
	Endpoints map[string]Endpoint `json:"endpoints"`
}

type FamilyInfo struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Subtypes []string `json:"subtypes"`
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}
