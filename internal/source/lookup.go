package source

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// LoadCompanyLookup reads the email-domain to company-EIN mapping.
// Domains are normalized to lowercase on load.
func LoadCompanyLookup(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read company lookup %s", path)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "source: parse company lookup %s", path)
	}

	lookup := make(map[string]string, len(raw))
	for domain, ein := range raw {
		lookup[strings.ToLower(strings.TrimSpace(domain))] = strings.TrimSpace(ein)
	}
	return lookup, nil
}
