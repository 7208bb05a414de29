package earthengine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope is the OAuth2 scope required by the REST API.
const Scope = "https://www.googleapis.com/auth/earthengine"

// AuthOptions selects the credentials used for the session.
type AuthOptions struct {
	// CredentialsFile is a service-account or authorized-user JSON key.
	// When empty, Application Default Credentials are used.
	CredentialsFile string

	// Timeout bounds each HTTP request made with the returned client.
	Timeout time.Duration
}

// Authenticate resolves credentials and returns an HTTP client that attaches
// and refreshes access tokens. Call it once per process.
func Authenticate(ctx context.Context, opts AuthOptions) (*http.Client, error) {
	var creds *google.Credentials

	if opts.CredentialsFile != "" {
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
	} else {
		var err error
		creds, err = google.FindDefaultCredentials(ctx, Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
	}

	// Fetch a token up front so bad credentials fail at startup rather than on
	// the first request.
	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	// The token source must outlive ctx, which may be a startup context.
	client := oauth2.NewClient(context.Background(), creds.TokenSource)
	client.Timeout = opts.Timeout

	return client, nil
}
