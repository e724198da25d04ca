package solana_client

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// Init solana client
func Init(rawUrl string) *rpc.Client {
	client := rpc.New(rawUrl)
	return client
}

// SupplyReader 通过 getTokenSupply 读取 mint 的链上供应量（原始精度）
type SupplyReader struct {
	client *rpc.Client
}

func NewSupplyReader(rawUrl string) *SupplyReader {
	return &SupplyReader{client: Init(rawUrl)}
}

func (s *SupplyReader) TokenSupply(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	out, err := s.client.GetTokenSupply(ctx, mint, rpc.CommitmentFinalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get token supply %s: %w", mint, err)
	}
	if out == nil || out.Value == nil {
		return decimal.Zero, fmt.Errorf("get token supply %s: empty result", mint)
	}
	supply, err := decimal.NewFromString(out.Value.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get token supply %s: bad amount %q: %w", mint, out.Value.Amount, err)
	}
	return supply, nil
}
