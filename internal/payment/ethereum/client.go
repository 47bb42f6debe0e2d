package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"SplitChain/internal/payment"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// erc20TransferABI 只包含清算所需的 transfer 方法。
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

const defaultTimeout = 30 * time.Second

// Config describes how to construct the ERC-20 settlement client.
type Config struct {
	RPCURL        string
	ChainID       int64
	TokenAddress  string
	TokenDecimals int32
	Timeout       time.Duration
}

// Client 通过稳定币（USDC 等 ERC-20 代币）的 transfer 调用实现
// payment.Client。每笔转账独立签名、独立广播。
type Client struct {
	eth      *ethclient.Client
	chainID  *big.Int
	token    common.Address
	decimals int32
	timeout  time.Duration
	erc20    abi.ABI
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("无效的代币合约地址: %s", cfg.TokenAddress)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID <= 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("获取链 ID 失败: %w", err)
		}
	}

	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("解析 ERC-20 ABI 失败: %w", err)
	}

	decimals := cfg.TokenDecimals
	if decimals <= 0 {
		decimals = 6
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		eth:      eth,
		chainID:  chainID,
		token:    common.HexToAddress(cfg.TokenAddress),
		decimals: decimals,
		timeout:  timeout,
		erc20:    parsed,
	}, nil
}

// Close releases the network connection held by the client.
func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}

// Pay 执行一笔 ERC-20 转账并返回交易哈希。备注无法写入标准的
// transfer 调用，只随凭证返回给调用方。
func (c *Client) Pay(ctx context.Context, req payment.Request) (*payment.Receipt, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	if req.From.PrivateKey == nil {
		return nil, errors.New("缺少签名私钥")
	}
	if !common.IsHexAddress(req.To) {
		return nil, fmt.Errorf("无效的收款地址: %s", req.To)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("转账金额必须为正: %s", req.Amount)
	}

	value, err := c.toBaseUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	from := crypto.PubkeyToAddress(req.From.PrivateKey.PublicKey)
	to := common.HexToAddress(req.To)

	data, err := c.erc20.Pack("transfer", to, value)
	if err != nil {
		return nil, fmt.Errorf("编码 transfer 调用失败: %w", err)
	}

	nonce, err := c.eth.PendingNonceAt(callCtx, from)
	if err != nil {
		return nil, fmt.Errorf("查询 nonce 失败: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, fmt.Errorf("查询 gas 价格失败: %w", err)
	}
	gasLimit, err := c.eth.EstimateGas(callCtx, gethcore.CallMsg{
		From: from,
		To:   &c.token,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("估算 gas 失败: %w", err)
	}

	tx := coretypes.NewTransaction(nonce, c.token, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chainID), req.From.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := c.eth.SendTransaction(callCtx, signed); err != nil {
		return nil, fmt.Errorf("广播交易失败: %w", err)
	}

	return &payment.Receipt{
		TxHash: signed.Hash().Hex(),
		From:   from.Hex(),
		To:     req.To,
		Amount: req.Amount,
		Memo:   req.Memo,
	}, nil
}

// toBaseUnits 把法币小数金额换算为代币最小单位。超过代币精度的
// 金额直接拒绝，而不是悄悄截断。
func (c *Client) toBaseUnits(amount decimal.Decimal) (*big.Int, error) {
	shifted := amount.Shift(c.decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("金额 %s 超过代币精度（%d 位小数）", amount, c.decimals)
	}
	return shifted.BigInt(), nil
}
