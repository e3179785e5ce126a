package jwt

import "github.com/golang-jwt/jwt"

// Supported UserType values. These mirror the account roles on the
// marketplace side of the platform.
const (
	UserTypeCreator    = "creator"
	UserTypeInvestor   = "investor"
	UserTypeProduction = "production"
)

// Payload defines the claims carried by a platform session token.
// The marketplace issues these tokens at login; the messaging server only
// verifies them, it never issues its own.
type Payload struct {
	// StandardClaims embeds Exp, Iat and Iss, which drive token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the platform user id of the token holder.
	ID string `json:"id"`

	// Username is the display name shown to other chat participants.
	Username string `json:"username"`

	// UserType is the account role: creator, investor or production.
	UserType string `json:"user_type"`
}
