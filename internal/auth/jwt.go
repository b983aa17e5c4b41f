package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nile-squad/nile/internal/result"
)

// newJWTHandler verifies HMAC-signed tokens read from the configured
// extraction location. Claims map to an Identity through the tolerated
// aliases; a payload with type "agent" reports its method as agent even
// though verification used the jwt path.
func newJWTHandler(secret string, extract ExtractConfig) Handler {
	key := []byte(secret)

	return func(ctx context.Context, ac Context) (result.SafeResult, error) {
		raw, err := ExtractToken(ac, extract)
		if err != nil {
			var mce *MalformedCredentialError
			if errors.As(err, &mce) {
				return result.Err(mce.Error(), result.ErrIDAuthFailed), nil
			}
			// Unknown extraction method is a configuration mistake.
			return result.SafeResult{}, err
		}
		if raw == "" {
			return result.Err("no auth token provided", result.ErrIDAuthFailed), nil
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return key, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return result.Err("auth token expired", result.ErrIDAuthFailed), nil
			}
			return result.Err(fmt.Sprintf("invalid auth token: %v", err), result.ErrIDAuthFailed), nil
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return result.Err("auth token carries no claims", result.ErrIDAuthFailed), nil
		}

		method := StrategyJWT
		if t, _ := claims["type"].(string); t == "agent" {
			method = StrategyAgent
		}

		identity, errRes, ok := identityFromClaims(map[string]any(claims), method)
		if !ok {
			return errRes, nil
		}
		return OkIdentity(identity), nil
	}
}
