package clickhouse

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/golang/mock/gomock"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

func (s *RepositorySuite) TestInsertArchivedOrders() {
	orders := []model.Order{
		archivedOrder(1, hashOf(0x01), hashOf(0x02)),
		archivedOrder(2, hashOf(0x01), chainhash.Hash{}),
	}

	s.metrics.EXPECT().Observe("insert_archived_orders", model.Mainnet, gomock.Nil(), gomock.Any()).Times(2)

	s.Require().NoError(s.repo.InsertArchivedOrders(s.testCtx, model.Mainnet, orders))
	s.Require().NoError(s.repo.InsertArchivedOrders(s.testCtx, model.Mainnet, orders[:1]))
	s.Equal(uint64(len(orders)), s.countRows("swap_history"))
}

func (s *RepositorySuite) TestInsertArchivedOrdersAfterSeqReset() {
	order := archivedOrder(7, hashOf(0x01), chainhash.Hash{})
	again := order
	again.Seq = 1

	s.metrics.EXPECT().Observe("insert_archived_orders", model.Mainnet, gomock.Nil(), gomock.Any()).Times(2)

	s.Require().NoError(s.repo.InsertArchivedOrders(s.testCtx, model.Mainnet, []model.Order{order}))
	s.Require().NoError(s.repo.InsertArchivedOrders(s.testCtx, model.Mainnet, []model.Order{again}))
	s.Equal(uint64(1), s.countRows("swap_history"))
}

func (s *RepositorySuite) TestArchivedOrders() {
	token := hashOf(0x01)
	orders := []model.Order{
		archivedOrder(3, token, hashOf(0x02)),
		archivedOrder(1, token, chainhash.Hash{}),
		archivedOrder(2, hashOf(0x09), chainhash.Hash{}),
		archivedOrder(4, token, chainhash.Hash{}),
	}

	s.metrics.EXPECT().Observe("insert_archived_orders", gomock.Any(), gomock.Nil(), gomock.Any()).Times(2)
	s.metrics.EXPECT().Observe("archived_orders", gomock.Any(), gomock.Nil(), gomock.Any()).Times(4)

	s.Require().NoError(s.repo.InsertArchivedOrders(s.testCtx, model.Mainnet, orders))
	s.Require().NoError(s.repo.InsertArchivedOrders(s.testCtx, model.Testnet, orders[:1]))

	all, err := s.repo.ArchivedOrders(s.testCtx, model.Mainnet, token, 0, 0)
	s.Require().NoError(err)
	s.Require().Equal([]model.Order{orders[1], orders[0], orders[3]}, all)

	page, err := s.repo.ArchivedOrders(s.testCtx, model.Mainnet, token, 1, 1)
	s.Require().NoError(err)
	s.Require().Equal([]model.Order{orders[0]}, page)

	past, err := s.repo.ArchivedOrders(s.testCtx, model.Mainnet, token, 10, 5)
	s.Require().NoError(err)
	s.Empty(past)

	other, err := s.repo.ArchivedOrders(s.testCtx, model.Testnet, token, 0, 0)
	s.Require().NoError(err)
	s.Len(other, 1)
}
