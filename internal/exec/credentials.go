package exec

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"contango-scanner/internal/venue"
)

// ErrMissingCredentials is returned when a venue's API key or secret is
// absent from the environment. Fatal in live mode, before any order.
var ErrMissingCredentials = errors.New("missing API credentials")

// Credentials holds one venue's API credentials.
type Credentials struct {
	Key      string
	Secret   string
	Password string
}

// CredentialsFromEnv reads <VENUE>_API_KEY, <VENUE>_API_SECRET and the
// optional <VENUE>_API_PASSWORD for a venue id.
func CredentialsFromEnv(id venue.ID) (Credentials, error) {
	prefix := strings.ToUpper(string(id))
	creds := Credentials{
		Key:      os.Getenv(prefix + "_API_KEY"),
		Secret:   os.Getenv(prefix + "_API_SECRET"),
		Password: os.Getenv(prefix + "_API_PASSWORD"),
	}
	if creds.Key == "" || creds.Secret == "" {
		return Credentials{}, fmt.Errorf("%w for %s", ErrMissingCredentials, id)
	}
	return creds, nil
}

// LoadCredentials resolves credentials for every venue or fails on the
// first missing set.
func LoadCredentials(ids []venue.ID) (map[venue.ID]Credentials, error) {
	out := make(map[venue.ID]Credentials, len(ids))
	for _, id := range ids {
		creds, err := CredentialsFromEnv(id)
		if err != nil {
			return nil, err
		}
		out[id] = creds
	}
	return out, nil
}
