// Package common contains shared constants and sentinel errors used across
// the account service components.
package common

// AuthorizationHeaderName carries the access token on protected HTTP routes.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside AuthorizationHeaderName.
const BearerPrefix = "Bearer "
