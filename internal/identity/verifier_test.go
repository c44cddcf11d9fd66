package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"docanchor/pkg/hashing"
)

// staticResolver serves a fixed method set without network access.
type staticResolver struct {
	set MethodSet
	err error
}

func (r staticResolver) Resolve(_ context.Context, _ string) (MethodSet, error) {
	if r.err != nil {
		return MethodSet{}, r.err
	}
	return r.set, nil
}

func methodSetFor(pub ed25519.PublicKey) MethodSet {
	return MethodSet{methods: map[KeyAlgorithm]VerificationMethod{
		AlgorithmEd25519: {ID: "did:example:abc#key-1", Algorithm: AlgorithmEd25519, PublicKey: pub},
	}}
}

type VerifierSuite struct {
	suite.Suite
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
	hash [hashing.DigestSize]byte
	sig  []byte
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupSuite() {
	var err error
	s.pub, s.priv, err = ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)

	s.hash = hashing.Sum([]byte("hello"))
	s.sig = ed25519.Sign(s.priv, s.hash[:])
}

func (s *VerifierSuite) verifier(r Resolver) *Verifier {
	return NewVerifier(r)
}

func (s *VerifierSuite) TestVerify() {
	ctx := context.Background()

	s.Run("valid signature verifies", func() {
		v := s.verifier(staticResolver{set: methodSetFor(s.pub)})
		s.True(v.Verify(ctx, s.hash[:], s.sig, "did:example:abc"))
	})

	s.Run("any single-bit mutation of the signature fails", func() {
		v := s.verifier(staticResolver{set: methodSetFor(s.pub)})
		for i := 0; i < len(s.sig); i++ {
			for bit := 0; bit < 8; bit++ {
				mutated := make([]byte, len(s.sig))
				copy(mutated, s.sig)
				mutated[i] ^= 1 << bit
				if v.Verify(ctx, s.hash[:], mutated, "did:example:abc") {
					s.Failf("mutation verified", "byte %d bit %d", i, bit)
				}
			}
		}
	})

	s.Run("any single-bit mutation of the hash fails", func() {
		v := s.verifier(staticResolver{set: methodSetFor(s.pub)})
		for i := 0; i < len(s.hash); i++ {
			mutated := make([]byte, len(s.hash))
			copy(mutated, s.hash[:])
			mutated[i] ^= 0x01
			s.False(v.Verify(ctx, mutated, s.sig, "did:example:abc"))
		}
	})

	s.Run("wrong-length digest is rejected without resolving", func() {
		v := s.verifier(staticResolver{err: fmt.Errorf("must not be called")})
		s.False(v.Verify(ctx, s.hash[:31], s.sig, "did:example:abc"))
	})

	s.Run("wrong-length signature is rejected without resolving", func() {
		v := s.verifier(staticResolver{err: fmt.Errorf("must not be called")})
		s.False(v.Verify(ctx, s.hash[:], s.sig[:63], "did:example:abc"))
	})

	s.Run("resolution failure resolves to false", func() {
		v := s.verifier(staticResolver{err: fmt.Errorf("resolver down")})
		s.False(v.Verify(ctx, s.hash[:], s.sig, "did:example:abc"))
	})

	s.Run("identity without an Ed25519 method resolves to false", func() {
		v := s.verifier(staticResolver{set: MethodSet{methods: map[KeyAlgorithm]VerificationMethod{}}})
		s.False(v.Verify(ctx, s.hash[:], s.sig, "did:example:abc"))
	})

	s.Run("truncated public key resolves to false", func() {
		short := MethodSet{methods: map[KeyAlgorithm]VerificationMethod{
			AlgorithmEd25519: {Algorithm: AlgorithmEd25519, PublicKey: s.pub[:16]},
		}}
		v := s.verifier(staticResolver{set: short})
		s.False(v.Verify(ctx, s.hash[:], s.sig, "did:example:abc"))
	})

	s.Run("signature from a different key resolves to false", func() {
		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(s.T(), err)
		v := s.verifier(staticResolver{set: methodSetFor(otherPub)})
		s.False(v.Verify(ctx, s.hash[:], s.sig, "did:example:abc"))
	})
}
