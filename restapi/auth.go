package restapi

import (
	"net/http"
	"os"
	"strings"

	log "log/slog"

	"github.com/gin-gonic/gin"
	jwtverifier "github.com/okta/okta-jwt-verifier-golang"
)

// TokenVerifier reports whether the request may proceed. On false it has already written
// the response.
type TokenVerifier func(c *gin.Context) bool

// AllowAll lets every request through.
func AllowAll(c *gin.Context) bool {
	return true
}

// EnvTokenVerifier verifies the Authorization bearer token using the environment:
// KEYDB_ENV=DEV disables verification, KEYDB_ENV=QA accepts KEYDB_QA_TOKEN, and otherwise the
// token is checked against the Okta issuer of OKTA_DOMAIN for OKTA_CLIENT_ID.
func EnvTokenVerifier() TokenVerifier {
	return verify
}

func verify(c *gin.Context) bool {
	env := os.Getenv("KEYDB_ENV")
	// Allow easy debugging on dev.
	if env == "DEV" {
		return true
	}

	token, ok := strings.CutPrefix(c.Request.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		c.String(http.StatusUnauthorized, "Unauthorized")
		c.Abort()
		return false
	}

	// Allow easy QA, bypass Okta based OAuth2 token verification w/ simple token equality check.
	if env == "QA" {
		if qaToken := os.Getenv("KEYDB_QA_TOKEN"); qaToken != "" && token == qaToken {
			return true
		}
	}

	verifierSetup := jwtverifier.JwtVerifier{
		Issuer: "https://" + os.Getenv("OKTA_DOMAIN") + "/oauth2/default",
		ClaimsToValidate: map[string]string{
			"aud": "api://default",
			"cid": os.Getenv("OKTA_CLIENT_ID"),
		},
	}
	verifier := verifierSetup.New()
	if _, err := verifier.VerifyAccessToken(token); err != nil {
		log.Debug("Bearer token rejected", "error", err)
		c.String(http.StatusForbidden, err.Error())
		c.Abort()
		return false
	}
	return true
}
