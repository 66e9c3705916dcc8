// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package user provides the profile directory the chat service consults
// when attributing messages.
package user

import (
	"context"
	"errors"
	"net/url"
)

// ErrNotFound is returned when a requested profile does not exist.
var ErrNotFound = errors.New("profile not found")

// Profile is the public identity attached to chat messages.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// Directory looks up profiles by user ID.
type Directory interface {
	Lookup(ctx context.Context, id string) (Profile, error)
}

const defaultDisplayName = "Community Member"

// DefaultProfile returns the profile used when a user is absent from the
// directory: a generic display name and a deterministic placeholder
// avatar, so the same unknown author always renders the same.
func DefaultProfile(id string) Profile {
	return Profile{
		ID:          id,
		DisplayName: defaultDisplayName,
		AvatarURL:   "https://ui-avatars.com/api/?name=" + url.QueryEscape(defaultDisplayName) + "&seed=" + url.QueryEscape(id),
	}
}
