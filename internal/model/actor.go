package model

import (
	"crypto/sha256"
	"encoding/hex"
)

type Role string

const (
	RoleParent Role = "PARENT"
	RoleNurse  Role = "NURSE"
	RoleAdmin  Role = "ADMIN"
)

// ActorContext identifies who performs an operation. It is passed to every call and never
// read from ambient storage.
type ActorContext struct {
	ActorID string `json:"actor_id"`
	Role    Role   `json:"role"`
	Token   string `json:"-"`
}

func (a ActorContext) Anonymous() bool {
	return a.Token == ""
}

// Key scopes cached snapshots and confirmation tokens to one bearer token. It is empty
// for the anonymous actor, whose reads always go to the backend.
func (a ActorContext) Key() string {
	if a.Anonymous() {
		return ""
	}
	sum := sha256.Sum256([]byte(a.Token))
	return hex.EncodeToString(sum[:16])
}
