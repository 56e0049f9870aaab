package github

// Credential is the single capability the gateway needs from a caller:
// rendering itself as an Authorization header value. The gateway never
// branches on the concrete credential kind.
type Credential interface {
	AuthorizationHeader() string
}

// AppJWT is the short-lived RS256 token asserting the app's own
// identity. GitHub expects it as a Bearer credential.
type AppJWT string

func (t AppJWT) AuthorizationHeader() string {
	return "Bearer " + string(t)
}

// OAuthToken is an end-user token obtained through the OAuth code
// exchange.
type OAuthToken string

func (t OAuthToken) AuthorizationHeader() string {
	return "token " + string(t)
}

// InstallationToken is a tenant-scoped access token minted from the app
// JWT.
type InstallationToken string

func (t InstallationToken) AuthorizationHeader() string {
	return "token " + string(t)
}
