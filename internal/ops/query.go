package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/session"
	"ChainPilot/internal/token"
)

const defaultHistoryBlocks = 10

func (e *Executor) getBalance(ctx context.Context, sess *session.Session) (result, error) {
	identity, bound := sess.Identity()
	if !bound {
		return result{}, xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
	}

	balance, err := e.chain.BalanceAt(ctx, identity.Address)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "余额查询失败")
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "地址 %s 的余额为 %s ETH。", identity.Address.Hex(), formatEther(balance))

	names := e.assets.Names()
	if len(names) > 0 {
		callData, err := token.PackBalanceOf(identity.Address)
		if err != nil {
			return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "balanceOf 调用构造失败")
		}
		for _, symbol := range names {
			tokenAddress, ok := e.assets.Resolve(symbol)
			if !ok {
				continue
			}
			output, err := e.chain.CallContract(ctx, gethcore.CallMsg{To: &tokenAddress, Data: callData})
			if err != nil {
				return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "代币 "+symbol+" 余额查询失败")
			}
			tokenBalance, err := token.UnpackBalance(output)
			if err != nil {
				return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "代币 "+symbol+" 余额解析失败")
			}
			fmt.Fprintf(&builder, "\n代币 %s: %s 枚", symbol, tokenBalance.String())
		}
	}
	return result{text: builder.String()}, nil
}

func (e *Executor) getGasPrice(ctx context.Context) (result, error) {
	fees, err := e.chain.FeeData(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "费率查询失败")
	}

	text := fmt.Sprintf("当前网络费率：小费上限 %s Gwei，总费率上限 %s Gwei", formatGwei(fees.GasTipCap), formatGwei(fees.GasFeeCap))
	if fees.BaseFee != nil {
		text += fmt.Sprintf("，基础费 %s Gwei", formatGwei(fees.BaseFee))
	}
	return result{text: text + "。"}, nil
}

func (e *Executor) getBlockNumber(ctx context.Context) (result, error) {
	number, err := e.chain.BlockNumber(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "区块高度查询失败")
	}
	return result{text: fmt.Sprintf("当前最新区块高度为 %d。", number)}, nil
}

func (e *Executor) getBlockLogs(ctx context.Context, raw json.RawMessage) (result, error) {
	var args blockLogsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}

	logs, err := e.chain.BlockLogs(ctx, args.BlockNumber)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "区块日志查询失败")
	}
	if len(logs) == 0 {
		return result{text: fmt.Sprintf("区块 %d 内没有事件日志。", args.BlockNumber)}, nil
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "区块 %d 共产生 %d 条事件日志：\n", args.BlockNumber, len(logs))
	for i, entry := range logs {
		topic := "（无主题）"
		if len(entry.Topics) > 0 {
			topic = entry.Topics[0].Hex()
		}
		fmt.Fprintf(&builder, "%d. 合约 %s 主题 %s 交易 %s\n", i+1, entry.Address.Hex(), topic, entry.TxHash.Hex())
	}
	return result{text: strings.TrimRight(builder.String(), "\n")}, nil
}

func (e *Executor) transactionHistory(ctx context.Context, sess *session.Session, raw json.RawMessage) (result, error) {
	var args historyArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}
	blocks := args.Blocks
	if blocks <= 0 {
		blocks = defaultHistoryBlocks
	}

	identity, bound := sess.Identity()
	if !bound {
		return result{}, xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
	}

	head, err := e.chain.BlockNumber(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "区块高度查询失败")
	}
	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "链标识查询失败")
	}
	signer := types.LatestSignerForChainID(chainID)

	lowest := uint64(0)
	if uint64(blocks) <= head {
		lowest = head - uint64(blocks) + 1
	}

	var lines []string
	for number := head; number >= lowest; number-- {
		block, err := e.chain.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, fmt.Sprintf("区块 %d 查询失败", number))
		}
		for _, tx := range block.Transactions() {
			direction := ""
			if tx.To() != nil && *tx.To() == identity.Address {
				direction = "转入"
			}
			if sender, err := types.Sender(signer, tx); err == nil && sender == identity.Address {
				direction = "转出"
			}
			if direction == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("区块 %d %s %s ETH 交易 %s", number, direction, formatEther(tx.Value()), tx.Hash().Hex()))
		}
		if number == 0 {
			break
		}
	}

	var builder strings.Builder
	if len(lines) == 0 {
		fmt.Fprintf(&builder, "最近 %d 个区块内没有涉及地址 %s 的交易。", blocks, identity.Address.Hex())
	} else {
		fmt.Fprintf(&builder, "最近 %d 个区块内涉及地址 %s 的交易：\n", blocks, identity.Address.Hex())
		for i, line := range lines {
			fmt.Fprintf(&builder, "%d. %s\n", i+1, line)
		}
	}

	if e.history != nil {
		records, err := e.history.ListByAddress(ctx, identity.Address.Hex(), 5)
		if err != nil {
			e.log.Error("操作流水查询失败", "error", err.Error())
		} else if len(records) > 0 {
			builder.WriteString("\n本服务记录的最近操作：\n")
			for i, record := range records {
				fmt.Fprintf(&builder, "%d. [%s] %s %s\n", i+1,
					time.Unix(record.CreatedAt, 0).Format("2006-01-02 15:04:05"),
					record.Operation, record.Status)
			}
		}
	}

	return result{text: strings.TrimRight(builder.String(), "\n")}, nil
}

func (e *Executor) getPrice(ctx context.Context, raw json.RawMessage) (result, error) {
	var args symbolArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}
	if e.market == nil {
		return result{}, xerrors.New(xerrors.CodeExecutionFailure, "行情服务未接入")
	}

	quote, err := e.market.SpotPrice(ctx, args.Symbol)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "现价查询失败")
	}
	return result{text: fmt.Sprintf("%s 当前价格为 %.2f 美元。", quote.Symbol, quote.PriceUSD)}, nil
}

func (e *Executor) getTrend(ctx context.Context, raw json.RawMessage) (result, error) {
	var args symbolArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}
	if e.market == nil {
		return result{}, xerrors.New(xerrors.CodeExecutionFailure, "行情服务未接入")
	}

	trend, err := e.market.Trend24h(ctx, args.Symbol)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "走势查询失败")
	}
	movement := "上涨"
	if trend.ChangePct < 0 {
		movement = "下跌"
	}
	return result{text: fmt.Sprintf("%s 最近 24 小时从 %.2f 美元到 %.2f 美元，%s %.2f%%。",
		trend.Symbol, trend.OpenUSD, trend.LastUSD, movement, abs(trend.ChangePct))}, nil
}

func abs(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}

func (e *Executor) faucetInfo() (result, error) {
	text := "测试网代币可以通过公共水龙头免费领取：\n" +
		"1. Sepolia: https://sepoliafaucet.com （需要 Alchemy 账号）\n" +
		"2. Sepolia PoW 水龙头: https://sepolia-faucet.pk910.de （浏览器挖矿，无需注册）\n" +
		"3. Google Cloud 水龙头: https://cloud.google.com/application/web3/faucet/ethereum/sepolia\n" +
		"领取后用 get_balance 确认到账。"
	return result{text: text}, nil
}
