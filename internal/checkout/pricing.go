package checkout

import (
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
)

type pricing struct {
	goods        int
	deliveryCost int
	bonusSpent   int
	bonusDelta   int
}

func (p pricing) amountDue() int {
	return p.goods - p.bonusSpent + p.deliveryCost
}

// price computes delivery and the bonus ledger entry. balance is nil for guests.
func price(cfg config.CheckoutConfig, goods int, delivery enums.DeliveryType, spend int, balance *int) (pricing, error) {
	p := pricing{goods: goods}
	if delivery == enums.DeliveryTypeDelivery {
		p.deliveryCost = cfg.DeliveryCost
		if cfg.FreeDeliveryThreshold > 0 && goods >= cfg.FreeDeliveryThreshold {
			p.deliveryCost = 0
		}
	}

	if balance == nil {
		if spend > 0 {
			return p, pkgerrors.New(pkgerrors.CodeForbidden, "bonus spending requires an account")
		}
		return p, nil
	}
	if spend > goods {
		return p, pkgerrors.New(pkgerrors.CodeValidation, "bonus spend exceeds goods total").
			WithDetails(map[string]any{"bonusSpend": spend, "goodsTotal": goods})
	}
	if spend > *balance {
		return p, pkgerrors.New(pkgerrors.CodeValidation, "bonus spend exceeds balance").
			WithDetails(map[string]any{"bonusSpend": spend, "balance": *balance})
	}
	p.bonusSpent = spend
	accrual := 0
	if cfg.BonusAccrualPercent > 0 {
		accrual = (goods - spend) * cfg.BonusAccrualPercent / 100
	}
	p.bonusDelta = accrual - spend
	return p, nil
}
