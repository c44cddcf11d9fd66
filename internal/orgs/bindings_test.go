package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docanchor/pkg/platform/sentinel"
	"docanchor/pkg/testutil"
)

func TestMemoryBindings(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "an identity bound to an organization", func(t *testing.T) {
		b := NewMemory()
		require.NoError(t, b.Bind("did:example:abc", "org-1"))

		testutil.Then(t, "the binding resolves in both directions", func(t *testing.T) {
			orgID, err := b.OrgForIdentity(ctx, "did:example:abc")
			require.NoError(t, err)
			assert.Equal(t, "org-1", orgID)

			identity, err := b.IdentityForOrg(ctx, "org-1")
			require.NoError(t, err)
			assert.Equal(t, "did:example:abc", identity)
		})

		testutil.When(t, "the identity is bound again", func(t *testing.T) {
			assert.ErrorIs(t, b.Bind("did:example:abc", "org-2"), sentinel.ErrConflict)

			orgID, err := b.OrgForIdentity(ctx, "did:example:abc")
			require.NoError(t, err)
			assert.Equal(t, "org-1", orgID, "bindings are set once and immutable")
		})
	})

	testutil.Given(t, "no binding", func(t *testing.T) {
		b := NewMemory()

		_, err := b.OrgForIdentity(ctx, "did:example:ghost")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = b.IdentityForOrg(ctx, "org-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
