package sheets

import (
	"encoding/json"
	"fmt"
	"os"
)

// Credentials is the subset of a service-account key file the bot validates
// before talking to the API. A malformed file is a Permanent failure and is
// caught at startup instead of surfacing as an auth error mid-lesson.
type Credentials struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// LoadCredentials reads and validates the service-account key file.
func LoadCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Permanent("load_credentials", fmt.Errorf("read credentials file '%s': %w", path, err))
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, Permanent("load_credentials", fmt.Errorf("parse credentials file '%s': %w", path, err))
	}

	if creds.Type != "service_account" {
		return nil, Permanent("load_credentials", fmt.Errorf("credentials type is %q, want service_account", creds.Type))
	}
	if creds.PrivateKey == "" || creds.ClientEmail == "" {
		return nil, Permanent("load_credentials", fmt.Errorf("credentials file '%s' is missing private_key or client_email", path))
	}

	return &creds, nil
}
