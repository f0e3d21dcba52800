package model

// Route is a named commute path and the station or area names that belong to it.
type Route struct {
	Name  string   `json:"name" yaml:"name"`
	Tier  Tier     `json:"tier" yaml:"tier"`
	Areas []string `json:"areas" yaml:"areas"`
}
