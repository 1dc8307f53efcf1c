// Package oauthutil adapts golang.org/x/oauth2 results to the domain's
// token shape.
package oauthutil

import (
	"time"

	"github.com/appforge/connectorhub/pkg/domain"

	"golang.org/x/oauth2"
)

// defaultTokenLifetime stands in for providers that issue non-expiring
// tokens; the stored expiry just has to be far enough out to never trigger a
// refresh.
const defaultTokenLifetime = 365 * 24 * time.Hour

func TokenResponse(token *oauth2.Token) domain.TokenResponse {
	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	scope, _ := token.Extra("scope").(string)

	return domain.TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
		Scope:        scope,
	}
}
