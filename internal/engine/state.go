package engine

import "pay-gateway-api/internal/model"

// 订单主状态机迁移表。终态不出边；AMBIGUOUS 只能被查单/回调收敛
var orderTransitions = map[int8][]int8{
	model.StatusCreated:   {model.StatusPending},
	model.StatusPending:   {model.StatusSubmitted, model.StatusFailed, model.StatusAmbiguous},
	model.StatusSubmitted: {model.StatusSucceeded, model.StatusFailed, model.StatusAmbiguous},
	model.StatusAmbiguous: {model.StatusSucceeded, model.StatusFailed, model.StatusExpired},
}

// 退款子状态机
var refundTransitions = map[int8][]int8{
	model.StatusCreated:   {model.StatusSubmitted, model.StatusFailed, model.StatusAmbiguous},
	model.StatusSubmitted: {model.StatusSucceeded, model.StatusFailed, model.StatusAmbiguous},
	model.StatusAmbiguous: {model.StatusSucceeded, model.StatusFailed, model.StatusExpired},
}

func canTransit(table map[int8][]int8, from, to int8) bool {
	for _, t := range table[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransitOrder 订单状态能否从 from 迁到 to
func CanTransitOrder(from, to int8) bool {
	return canTransit(orderTransitions, from, to)
}

// CanTransitRefund 退款状态能否从 from 迁到 to
func CanTransitRefund(from, to int8) bool {
	return canTransit(refundTransitions, from, to)
}
