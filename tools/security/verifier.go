package security

import (
	"context"

	"BProject/service/chat"
)

// TokenVerifier adapts JWT verification to the gateway's Verifier contract:
// parse and check the credential, then enrich the identity from the user
// store when one is attached (claims may lag a username change).
type TokenVerifier struct {
	opts  Options
	users chat.UserStore // optional
}

func NewTokenVerifier(opts Options, users chat.UserStore) *TokenVerifier {
	return &TokenVerifier{opts: opts, users: users}
}

func (v *TokenVerifier) Verify(ctx context.Context, credential string) (*chat.Identity, error) {
	id, err := Verify(v.opts, credential)
	if err != nil {
		return nil, err
	}
	out := &chat.Identity{
		UserID:   id.UserID,
		Username: id.Username,
		Email:    id.Email,
		Tier:     id.Tier,
	}
	if v.users != nil {
		if view, err := v.users.FindDisplay(ctx, id.UserID); err == nil && view != nil {
			out.Username = view.Username
		}
	}
	return out, nil
}
