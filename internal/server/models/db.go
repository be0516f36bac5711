// Package models defines server-side entities persisted by the repositories.
package models
