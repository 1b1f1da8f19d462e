package dao

import (
	"gorm.io/gorm"
)

// Store 聚合各实体 Dao，整体实现引擎的存储接口
type Store struct {
	*OrderDao
	*TxDao
	*RefundDao
	*OrphanDao
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		OrderDao:  NewOrderDao(db),
		TxDao:     NewTxDao(db),
		RefundDao: NewRefundDao(db),
		OrphanDao: NewOrphanDao(db),
	}
}
