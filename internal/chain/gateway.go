package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/manh-exchange/manh-core/pkg/logger"
)

// Transaction 观测到的链上转账
// 外部数据源可能重复上报同一笔交易，对账必须幂等
type Transaction struct {
	Hash   string          `json:"hash"`
	Memo   string          `json:"memo"`
	Amount decimal.Decimal `json:"amount"` // 链上资产数量，9 位小数
}

// Gateway 链上转账观测接口
type Gateway interface {
	// FetchTransfers 返回 [fromBlock, 最新确认区块] 内到国库地址的转账，以及下次扫描起点
	FetchTransfers(ctx context.Context, fromBlock uint64) ([]Transaction, uint64, error)
}

// EthGateway 基于以太坊 RPC 的转账观测
// 扫描原生转账，备注取自 calldata 的 UTF-8 内容
type EthGateway struct {
	client        *ethclient.Client
	treasury      common.Address
	confirmations uint64
	maxBlockSpan  uint64
	decimals      int32 // 链上资产小数位
}

// EthGatewayConfig 观测配置
type EthGatewayConfig struct {
	RPCURL        string
	Treasury      string
	Confirmations uint64 // 视为最终的确认数
	MaxBlockSpan  uint64 // 单次扫描区块数上限，默认 100
	Decimals      int32  // 默认 9
}

// NewEthGateway 创建链上观测
func NewEthGateway(ctx context.Context, cfg *EthGatewayConfig) (*EthGateway, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	if !common.IsHexAddress(cfg.Treasury) {
		return nil, fmt.Errorf("invalid treasury address %q", cfg.Treasury)
	}
	span := cfg.MaxBlockSpan
	if span == 0 {
		span = 100
	}
	decimals := cfg.Decimals
	if decimals == 0 {
		decimals = 9
	}
	return &EthGateway{
		client:        client,
		treasury:      common.HexToAddress(cfg.Treasury),
		confirmations: cfg.Confirmations,
		maxBlockSpan:  span,
		decimals:      decimals,
	}, nil
}

func (g *EthGateway) FetchTransfers(ctx context.Context, fromBlock uint64) ([]Transaction, uint64, error) {
	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return nil, fromBlock, fmt.Errorf("get head block: %w", err)
	}
	if head < g.confirmations {
		return nil, fromBlock, nil
	}

	confirmed := head - g.confirmations
	if fromBlock > confirmed {
		return nil, fromBlock, nil
	}

	toBlock := confirmed
	if toBlock-fromBlock >= g.maxBlockSpan {
		toBlock = fromBlock + g.maxBlockSpan - 1
	}

	var transfers []Transaction
	for n := fromBlock; n <= toBlock; n++ {
		block, err := g.client.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, fromBlock, fmt.Errorf("get block %d: %w", n, err)
		}
		for _, tx := range block.Transactions() {
			t, ok := g.parseTransfer(tx)
			if !ok {
				continue
			}
			transfers = append(transfers, t)
		}
	}

	if len(transfers) > 0 {
		logger.Debug("treasury transfers observed",
			"from_block", fromBlock, "to_block", toBlock, "count", len(transfers))
	}
	return transfers, toBlock + 1, nil
}

// parseTransfer 过滤到国库的原生转账并提取备注
func (g *EthGateway) parseTransfer(tx *types.Transaction) (Transaction, bool) {
	to := tx.To()
	if to == nil || *to != g.treasury {
		return Transaction{}, false
	}
	if tx.Value().Sign() <= 0 {
		return Transaction{}, false
	}

	memo := decodeMemo(tx.Data())
	if memo == "" {
		return Transaction{}, false
	}

	amount := decimal.NewFromBigInt(tx.Value(), -g.decimals)
	return Transaction{
		Hash:   tx.Hash().Hex(),
		Memo:   memo,
		Amount: amount,
	}, true
}

// decodeMemo calldata 中的 UTF-8 文本即支付备注
func decodeMemo(data []byte) string {
	if len(data) == 0 || len(data) > 256 {
		return ""
	}
	if !utf8.Valid(data) {
		return ""
	}
	memo := strings.TrimSpace(string(data))
	if !strings.HasPrefix(memo, memoPrefix+"|") {
		return ""
	}
	return memo
}
