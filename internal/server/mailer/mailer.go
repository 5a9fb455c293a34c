// Package mailer delivers password reset tokens to users. Delivery is
// best-effort from the caller's point of view: the auth service never rolls
// back a reset record because a message failed to send.
package mailer

import (
	"context"
	"fmt"
)

// Mailer sends a reset token to an address.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

const resetSubject = "Password reset"

func resetBody(token string) string {
	return fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Reset token: %s\n\n"+
			"The token is valid for a limited time and can be used once.\n"+
			"If you did not request a reset, ignore this message.\n",
		token)
}
