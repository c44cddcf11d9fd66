//go:build integration

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"docanchor/internal/anchor/models"
	"docanchor/pkg/testutil/containers"
)

type SubmitterSuite struct {
	suite.Suite
	client    *kgo.Client
	submitter *LogSubmitter
}

func TestSubmitterSuite(t *testing.T) {
	suite.Run(t, new(SubmitterSuite))
}

func (s *SubmitterSuite) SetupSuite() {
	broker := containers.NewRedpandaContainer(s.T())

	client, err := NewClient(broker.Brokers)
	s.Require().NoError(err)
	s.client = client
	s.T().Cleanup(client.Close)

	s.Require().NoError(EnsureTopic(context.Background(), client, "document-proofs"))
	s.submitter = NewLogSubmitter(client, 10*time.Second)
}

func (s *SubmitterSuite) TestEnsureTopicIsIdempotent() {
	s.NoError(EnsureTopic(context.Background(), s.client, "document-proofs"))
}

func (s *SubmitterSuite) TestSubmitAcknowledgesFinality() {
	ctx := context.Background()
	payload, err := models.ProofMessage{
		Hash:      "aa11223344556677889900aabbccddeeff00112233445566778899aabbccddee",
		DID:       "did:example:abc",
		Signature: "sig",
	}.Encode()
	s.Require().NoError(err)

	first, err := s.submitter.Submit(ctx, "document-proofs", payload)
	s.Require().NoError(err)
	s.Regexp(`^document-proofs/\d+/\d+$`, first.TransactionID)
	s.False(first.ConsensusTimestamp.IsZero())

	second, err := s.submitter.Submit(ctx, "document-proofs", payload)
	s.Require().NoError(err)
	s.NotEqual(first.TransactionID, second.TransactionID, "every submission lands at a distinct offset")
}
