// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package lvldb_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/omnibridge/settlement-core/lvldb"
)

type LVLDBTestSuite struct {
	suite.Suite
	db *lvldb.LVLDB
}

func TestRunLVLDBTestSuite(t *testing.T) {
	suite.Run(t, new(LVLDBTestSuite))
}

func (s *LVLDBTestSuite) SetupTest() {
	db, err := lvldb.NewLvlDB(filepath.Join(s.T().TempDir(), "blockstore"))
	s.Require().Nil(err)
	s.db = db
}

func (s *LVLDBTestSuite) TearDownTest() {
	s.Require().Nil(s.db.Close())
}

func (s *LVLDBTestSuite) Test_SetAndGet() {
	err := s.db.SetByKey([]byte("key"), []byte("value"))
	s.Nil(err)

	v, err := s.db.GetByKey([]byte("key"))

	s.Nil(err)
	s.Equal([]byte("value"), v)
}

func (s *LVLDBTestSuite) Test_GetMissingKey() {
	_, err := s.db.GetByKey([]byte("missing"))

	s.ErrorIs(err, leveldb.ErrNotFound)
}

func (s *LVLDBTestSuite) Test_OverwriteKey() {
	s.Require().Nil(s.db.SetByKey([]byte("key"), []byte("old")))
	s.Require().Nil(s.db.SetByKey([]byte("key"), []byte("new")))

	v, err := s.db.GetByKey([]byte("key"))

	s.Nil(err)
	s.Equal([]byte("new"), v)
}
