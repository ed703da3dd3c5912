// Package auth verifies Firebase logins. The frontend signs in with the
// Firebase JS SDK and posts the resulting ID token; we exchange it for a
// revocable session cookie and validate that cookie on every request.
package auth

import (
	"context"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// Firebase wraps the Admin SDK auth client.
type Firebase struct {
	client *fbauth.Client
}

func NewFirebase(ctx context.Context, credentialsFile string) (*Firebase, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize firebase app")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize firebase auth")
	}
	return &Firebase{client: client}, nil
}

// SessionCookie exchanges a fresh ID token for a session cookie. Firebase
// caps the lifetime at 14 days.
func (f *Firebase) SessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	cookie, err := f.client.SessionCookie(ctx, idToken, ttl)
	if err != nil {
		return "", errors.Wrap(err, "could not mint session cookie")
	}
	return cookie, nil
}

// VerifySessionCookie returns the uid behind a session cookie. Revoked
// sessions are rejected.
func (f *Firebase) VerifySessionCookie(ctx context.Context, cookie string) (string, error) {
	tok, err := f.client.VerifySessionCookieAndCheckRevoked(ctx, cookie)
	if err != nil {
		return "", errors.Wrap(err, "invalid session cookie")
	}
	return tok.UID, nil
}
