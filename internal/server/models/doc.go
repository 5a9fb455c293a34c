// Package models holds the records persisted by the auth server.
package models
