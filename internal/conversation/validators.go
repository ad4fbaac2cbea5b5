package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"

	partymodels "fixdesk/internal/party/models"
)

// Step validators. Each returns a human-readable precondition so the
// transport can tell the principal exactly what to fix.

func nonEmpty(_ context.Context, _ map[string]string, input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("a value is required")
	}
	return nil
}

func positiveInt(_ context.Context, _ map[string]string, input string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil || n <= 0 {
		return errors.New("enter a positive whole number")
	}
	return nil
}

func phoneNumber(_ context.Context, _ map[string]string, input string) error {
	if !partymodels.ValidPhone(input) {
		return errors.New("enter a phone number, digits only with optional +, spaces or dashes")
	}
	return nil
}
