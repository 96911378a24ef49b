package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/pkg/errors"
)

// RoleClaim is the custom claim the portal stamps on ID tokens.
const RoleClaim = "role"

// FirebaseAuthClient verifies Firebase ID tokens.
type FirebaseAuthClient struct {
	client   *auth.Client
	userRepo repository.UserRepository
}

// NewFirebaseAuthClient falls back to userRepo for tokens without a role
// claim. userRepo may be nil, in which case such tokens are rejected.
func NewFirebaseAuthClient(client *auth.Client, userRepo repository.UserRepository) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client:   client,
		userRepo: userRepo,
	}
}

func (f *FirebaseAuthClient) Verify(ctx context.Context, token string) (*entity.Identity, error) {
	if token == "" {
		return nil, errors.Unauthorized("Authentication token is required", nil)
	}

	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	claim, _ := result.Claims[RoleClaim].(string)
	return ResolveIdentity(ctx, f.userRepo, result.UID, claim)
}

// ResolveIdentity builds an identity from a verified subject, preferring the
// role claim and otherwise asking the directory.
func ResolveIdentity(ctx context.Context, users repository.UserRepository, uid, roleClaim string) (*entity.Identity, error) {
	if uid == "" {
		return nil, errors.Unauthorized("Token has no subject", nil)
	}
	if role, ok := entity.ParseRole(roleClaim); ok {
		return &entity.Identity{UserID: uid, Role: role}, nil
	}
	if users == nil {
		return nil, errors.Unauthorized("Token carries no role", nil)
	}

	role, err := users.RoleOf(ctx, uid)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.Unauthorized("Unknown user", err)
		}
		return nil, err
	}
	return &entity.Identity{UserID: uid, Role: role}, nil
}
