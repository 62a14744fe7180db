// Package service contains the service layer for the Profile API
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Application error codes
const (
	CodeInvalidInput        = 2000
	CodeInvalidCredentials  = 2001
	CodeEmailInUse          = 2002
	CodeInvalidConfirmation = 2003
	CodeInvalidResetCode    = 2004
	CodeAuthStore           = 2005

	CodePermissionDenied = 1300
	CodeBlockStore       = 1301
	CodeBlockNotFound    = 1302

	CodeAccountBlocked = 3120

	CodeUserNotFound      = 9110
	CodeUserStore         = 9111
	CodeInvalidSearch     = 9112
	CodeCurrentUserStore  = 9114
	CodeInvalidPassword   = 9118
	CodePasswordUserStore = 9119
	CodeWrongPassword     = 9120
	CodePasswordUpdate    = 9121
	CodeAvatarUserStore   = 9123
	CodeInvalidAvatar     = 9124
	CodeAvatarStorage     = 9125
	CodeInvalidPhone      = 9127
	CodeInvalidField      = 9128
	CodeProfileUserStore  = 9129
	CodeProfileUpdate     = 9131
	CodeNoParameters      = 9132
)

// Auditor records user lifecycle events
type Auditor interface {
	Record(ctx context.Context, event, userID, actorID string, fields map[string]interface{})
}

// tokenBytes is the entropy of a session token
const tokenBytes = 32

// newToken returns an unguessable hex encoded session token
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// newCode returns a random six digit code
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
