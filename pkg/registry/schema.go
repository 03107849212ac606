// pkg/registry/schema.go
package registry

// ModelRegistry is the catalog of deployable model artifacts.
type ModelRegistry struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Models      []Model `json:"models"`
}

type Model struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Kind        string   `json:"kind"`
	Version     string   `json:"version"`
	URI         string   `json:"uri"`
	SHA256      string   `json:"sha256,omitempty"`
	Preload     bool     `json:"preload"`
	Tags        []string `json:"tags,omitempty"`
}
