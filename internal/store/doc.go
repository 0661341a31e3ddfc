// Package store persists the chat message log and the token-to-user
// registry behind a small driver-selectable interface.
package store
