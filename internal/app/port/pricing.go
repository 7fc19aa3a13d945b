package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
)

// PriceSource fetches USD prices for a batch of tokens. Unknown tokens map
// to zero, never to an error, so one unpriceable token cannot fail a whole
// enrichment pass. Implementations may delegate to a fallback source.
type PriceSource interface {
	GetPrices(ctx context.Context, tokens []entity.TokenRef) (map[entity.TokenRef]decimal.Decimal, error)
}
