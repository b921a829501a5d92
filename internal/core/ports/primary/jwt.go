package primary

import "context"

type JWTService interface {
	// GenerateTokenHMAC signs claims, adding a one hour expiry when absent
	GenerateTokenHMAC(ctx context.Context, method string, claims map[string]interface{}) (string, error)
	// VerifyTokenHMAC validates the token and returns its subject claim
	VerifyTokenHMAC(ctx context.Context, token string) (string, error)
}
