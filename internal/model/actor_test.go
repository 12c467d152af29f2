package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorContext_Key(t *testing.T) {
	nurse := ActorContext{ActorID: "nurse-1", Role: RoleNurse, Token: "token-a"}

	assert.Len(t, nurse.Key(), 32)
	assert.Equal(t, nurse.Key(), ActorContext{Token: "token-a"}.Key(), "the token alone decides the key")
	assert.NotEqual(t, nurse.Key(), ActorContext{ActorID: "nurse-1", Token: "token-b"}.Key())
	assert.NotContains(t, nurse.Key(), "token-a")

	anonymous := ActorContext{ActorID: "nurse-1"}
	assert.True(t, anonymous.Anonymous())
	assert.Empty(t, anonymous.Key())
}
