// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package identity_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitter-id/sitter/internal/identity"
	"github.com/sitter-id/sitter/internal/person"
	"github.com/sitter-id/sitter/internal/person/persontest"
	"github.com/sitter-id/sitter/pkg/errutil"
)

func TestValidEmail(t *testing.T) {
	valid := []string{
		"somebody@example.com",
		"somebody@sub.example.com",
		"somebody@127.0.0.1",
		"first.last+tag@example.org",
		"x@localhost",
	}
	for _, email := range valid {
		t.Run(email, func(t *testing.T) {
			assert.True(t, identity.ValidEmail(email))
		})
	}

	invalid := []string{
		"",
		"no body@example.com",
		"no body@sub.example.com",
		"nobody@127 0.0.1",
		"nobody.example.com",
		"nobody@nobody@example.com",
		"nobody@-example.com",
		"nobody@example-.com",
		"nobody@",
		"@example.com",
		"nobody@example.com.",
		"no\vbody@example.com",
		"no\u0085body@example.com",
		"no\u00a0body@example.com",
		"no\u2003body@example.com",
		"no\u2028body@example.com",
		"no\u3000body@example.com",
	}
	for _, email := range invalid {
		t.Run(fmt.Sprintf("rejects %q", email), func(t *testing.T) {
			assert.False(t, identity.ValidEmail(email))
		})
	}
}

func TestHook_Validate(t *testing.T) {
	hook := identity.NewHook()
	ctx := context.Background()

	t.Run("malformed email is a validation error", func(t *testing.T) {
		err := hook.Validate(ctx, &person.Request{Email: "nobody.example.com"}, person.ActionCreate)
		require.Error(t, err)
		assert.ErrorIs(t, err, person.ErrValidation)
		assert.NotErrorIs(t, err, person.ErrPolicy)
		errutil.AssertErrorCode(t, err, "IDENTITY_INVALID_EMAIL")
		errutil.AssertErrorContext(t, err, "email", "nobody.example.com")
	})

	t.Run("empty email rejected on create", func(t *testing.T) {
		err := hook.Validate(ctx, &person.Request{}, person.ActionCreate)
		assert.ErrorIs(t, err, person.ErrValidation)
	})

	t.Run("empty email on update means unchanged", func(t *testing.T) {
		assert.NoError(t, hook.Validate(ctx, &person.Request{Password: "newpassword"}, person.ActionUpdate))
	})

	t.Run("new email on update is checked", func(t *testing.T) {
		err := hook.Validate(ctx, &person.Request{Email: "two@@example.com"}, person.ActionUpdate)
		assert.ErrorIs(t, err, person.ErrValidation)
	})

	assert.Equal(t, "identity", person.HookName(hook))
}

func TestHook_AbortsCreate(t *testing.T) {
	store := persontest.NewStore()
	reg, err := person.NewRegistry(identity.NewHook())
	require.NoError(t, err)
	engine, err := person.NewEngine(store, store, reg)
	require.NoError(t, err)

	_, err = engine.Create(context.Background(), &person.Request{Email: "no body@example.com", Password: "password123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, person.ErrValidation)
	assert.Zero(t, store.Len())
	assert.Zero(t, store.Begins)
}
