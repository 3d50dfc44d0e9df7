package ops

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "ChainPilot/internal/errors"
)

type connectWalletArgs struct {
	PrivateKey string `json:"private_key"`
}

type blockLogsArgs struct {
	BlockNumber uint64 `json:"block_number"`
}

type historyArgs struct {
	Blocks int `json:"blocks"`
}

type sendETHArgs struct {
	To        string `json:"to"`
	AmountETH string `json:"amount_eth"`
}

type signMessageArgs struct {
	Message string `json:"message"`
}

type createTokenArgs struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	InitialSupply string `json:"initial_supply"`
}

type sendTokenArgs struct {
	Symbol string `json:"symbol"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type batchTransferArgs struct {
	Items string `json:"items"`
}

type symbolArgs struct {
	Symbol string `json:"symbol"`
}

// decodeArgs 把 schema 校验通过的原始参数解码到目标结构。
func decodeArgs(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "参数解码失败")
	}
	return nil
}

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// parseAddress 校验地址语法并解析。
func parseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument, "地址格式无效: "+value)
	}
	return common.HexToAddress(trimmed), nil
}

// parseEtherToWei 把十进制 ETH 金额精确换算为 wei。金额必须为正，
// 且精度不得超过 1 wei。
func parseEtherToWei(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "金额不是合法数字: "+value)
	}
	if amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "金额必须为正数: "+value)
	}
	wei := new(big.Rat).Mul(amount, new(big.Rat).SetInt(weiPerEther))
	if !wei.IsInt() {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "金额精度超过 1 wei: "+value)
	}
	return new(big.Int).Set(wei.Num()), nil
}

// parseWholeUnits 解析正整数代币数量。代币按整枚计数，不接受小数。
func parseWholeUnits(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "代币数量必须是整数: "+value)
	}
	if amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "代币数量必须为正数: "+value)
	}
	return amount, nil
}

// formatEther 把 wei 金额格式化为 ETH 字符串，去掉多余的尾零。
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	text := new(big.Rat).SetFrac(wei, weiPerEther).FloatString(18)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}

// formatGwei 把 wei 费率格式化为 Gwei 字符串。
func formatGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	gweiPerWei := new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)
	text := new(big.Rat).SetFrac(wei, gweiPerWei).FloatString(9)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}
