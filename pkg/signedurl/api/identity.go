package api

import (
	"context"
	"encoding/json"
	"strings"

	"cloud.google.com/go/compute/metadata"
	"golang.org/x/oauth2/google"

	"github.com/tendant/signed-upload/pkg/signedurl/iamsigner"
)

// CredentialsFinder returns the credentials the process runs with.
type CredentialsFinder func(ctx context.Context) (*google.Credentials, error)

// DefaultCredentials looks up application default credentials.
func DefaultCredentials(ctx context.Context) (*google.Credentials, error) {
	return google.FindDefaultCredentials(ctx, iamsigner.Scope)
}

// RuntimeIdentity describes the credentials found at runtime. When it
// differs from the configured signing identity, signBlob calls are made by
// one principal on behalf of another and need the token creator role.
type RuntimeIdentity struct {
	ProjectID           string `json:"project_id,omitempty"`
	CredentialsType     string `json:"credentials_type,omitempty"`
	ServiceAccountEmail string `json:"service_account_email,omitempty"`
}

// credentialsFile holds the fields of a credentials JSON file that name a
// principal.
type credentialsFile struct {
	Type                           string `json:"type"`
	ClientEmail                    string `json:"client_email"`
	ServiceAccountImpersonationURL string `json:"service_account_impersonation_url"`
}

const metadataCredentials = "compute_metadata"

func describeCredentials(ctx context.Context, creds *google.Credentials) RuntimeIdentity {
	id := RuntimeIdentity{ProjectID: creds.ProjectID}

	if len(creds.JSON) == 0 {
		id.CredentialsType = metadataCredentials
		if metadata.OnGCE() {
			email, err := metadata.GetWithContext(ctx, "instance/service-accounts/default/email")
			if err == nil {
				id.ServiceAccountEmail = strings.TrimSpace(email)
			}
		}
		return id
	}

	var f credentialsFile
	if err := json.Unmarshal(creds.JSON, &f); err != nil {
		id.CredentialsType = "unknown"
		return id
	}
	id.CredentialsType = f.Type
	id.ServiceAccountEmail = f.ClientEmail
	if id.ServiceAccountEmail == "" {
		id.ServiceAccountEmail = impersonatedEmail(f.ServiceAccountImpersonationURL)
	}
	return id
}

// impersonatedEmail extracts the account from
// .../serviceAccounts/{email}:generateAccessToken.
func impersonatedEmail(u string) string {
	const marker = "/serviceAccounts/"
	i := strings.LastIndex(u, marker)
	if i < 0 {
		return ""
	}
	email := u[i+len(marker):]
	if j := strings.Index(email, ":"); j >= 0 {
		email = email[:j]
	}
	return email
}
