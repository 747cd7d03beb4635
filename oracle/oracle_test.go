// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package oracle_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/omnibridge/settlement-core/oracle"
)

type StaticFeedTestSuite struct {
	suite.Suite
	feed *oracle.StaticFeed
}

func TestRunStaticFeedTestSuite(t *testing.T) {
	suite.Run(t, new(StaticFeedTestSuite))
}

func (s *StaticFeedTestSuite) SetupTest() {
	// 0.3% protocol fee
	feeRate := new(big.Int).Div(oracle.RAY, big.NewInt(1000))
	feeRate.Mul(feeRate, big.NewInt(3))
	s.feed = oracle.NewStaticFeed(feeRate)
	s.feed.SetRatio(5, new(big.Int).Mul(oracle.RAY, big.NewInt(7)))
}

func (s *StaticFeedTestSuite) Test_Ratio_KnownChain() {
	ratio, err := s.feed.Ratio(5)

	s.Nil(err)
	s.Equal(new(big.Int).Mul(oracle.RAY, big.NewInt(7)), ratio)
	s.NotZero(s.feed.LastUpdated(5))
}

func (s *StaticFeedTestSuite) Test_Ratio_UnknownChain() {
	_, err := s.feed.Ratio(9)

	s.NotNil(err)
	s.Zero(s.feed.LastUpdated(9))
}

func (s *StaticFeedTestSuite) Test_CachedRatio_MatchesRatio() {
	cached, err := s.feed.CachedRatio(5)
	s.Nil(err)
	refreshed, err := s.feed.Ratio(5)
	s.Nil(err)

	s.Equal(refreshed, cached)
}

func (s *StaticFeedTestSuite) Test_CachedRatio_UnknownChain() {
	_, err := s.feed.CachedRatio(9)

	s.NotNil(err)
}

func (s *StaticFeedTestSuite) Test_ProtocolFee_Truncates() {
	fee, err := s.feed.ProtocolFee(big.NewInt(100000000))

	s.Nil(err)
	s.Equal(big.NewInt(300000), fee)

	// below the rate's resolution everything truncates to zero
	fee, err = s.feed.ProtocolFee(big.NewInt(1))
	s.Nil(err)
	s.Equal(int64(0), fee.Int64())
}

func (s *StaticFeedTestSuite) Test_ProtocolFee_ZeroRate() {
	feed := oracle.NewStaticFeed(nil)

	fee, err := feed.ProtocolFee(big.NewInt(100000000))

	s.Nil(err)
	s.Equal(big.NewInt(0), fee)
}
