package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"CampusHub/tools/security"
)

// JWTVerifier authenticates connection tokens: HS256, user identity in
// the `sub` claim.
type JWTVerifier struct {
	opts security.Options
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{opts: security.DefaultOptions(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errors.New("missing token")
	}
	claims, err := security.Verify(v.opts, token)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "verify token")
	}
	sub, err := claims.Subject()
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "token subject is not a uuid")
	}
	return userID, nil
}
