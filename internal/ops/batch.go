package ops

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/session"
	"ChainPilot/internal/token"
)

type transferKind int

const (
	kindNative transferKind = iota
	kindAsset
)

// transferItem 是批量指令里解析出的一笔转账。amount 对原生转账是
// wei，对代币转账是整枚数。
type transferItem struct {
	kind      transferKind
	recipient common.Address
	amount    *big.Int
	rawAmount string
	assetName string
	assetAddr common.Address
}

func (item transferItem) describe() string {
	if item.kind == kindNative {
		return fmt.Sprintf("ETH -> %s %s ETH", item.recipient.Hex(), item.rawAmount)
	}
	return fmt.Sprintf("%s -> %s %s 枚", item.assetName, item.recipient.Hex(), item.rawAmount)
}

// itemOutcome 是批量执行记录中的一项，与输入项一一对应。
type itemOutcome struct {
	item   transferItem
	ok     bool
	txHash common.Hash
	reason string
}

// parseBatchItems 解析批量转账指令串。按空白切分后从左到右消费：
// ETH 标记吃 3 个词（标记、收款地址、金额），TOKEN 标记吃 4 个词
// （标记、收款地址、数量、代币符号）。任何一项不合法都让整个批次
// 失败，此时还没有发生任何链上调用。
func (e *Executor) parseBatchItems(input string) ([]transferItem, error) {
	words := strings.Fields(input)
	if len(words) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "批量转账指令为空")
	}

	var items []transferItem
	pos := 0
	for pos < len(words) {
		index := len(items) + 1
		marker := strings.ToUpper(words[pos])
		switch marker {
		case "ETH":
			if pos+3 > len(words) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项不完整：ETH 转账需要收款地址和金额", index))
			}
			recipient, err := parseAddress(words[pos+1])
			if err != nil {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项收款地址无效: %s", index, words[pos+1]))
			}
			amountWei, err := parseEtherToWei(words[pos+2])
			if err != nil {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项金额无效: %s", index, words[pos+2]))
			}
			items = append(items, transferItem{
				kind:      kindNative,
				recipient: recipient,
				amount:    amountWei,
				rawAmount: words[pos+2],
			})
			pos += 3
		case "TOKEN":
			if pos+4 > len(words) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项不完整：TOKEN 转账需要收款地址、数量和代币符号", index))
			}
			recipient, err := parseAddress(words[pos+1])
			if err != nil {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项收款地址无效: %s", index, words[pos+1]))
			}
			amount, err := parseWholeUnits(words[pos+2])
			if err != nil {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项数量无效: %s", index, words[pos+2]))
			}
			symbol := strings.ToUpper(words[pos+3])
			assetAddr, exists := e.assets.Resolve(symbol)
			if !exists {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项代币符号 %s 未注册", index, symbol))
			}
			items = append(items, transferItem{
				kind:      kindAsset,
				recipient: recipient,
				amount:    amount,
				rawAmount: words[pos+2],
				assetName: symbol,
				assetAddr: assetAddr,
			})
			pos += 4
		default:
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 项的类型标记 %s 无法识别，只支持 ETH 或 TOKEN", index, words[pos]))
		}
	}
	return items, nil
}

// batchTransfer 执行批量转账。校验全量前置：任何一项不合法都在发
// 起任何链上调用之前让整个批次失败。执行阶段只读一次链上 nonce，
// 第 i 项固定使用 baseNonce+i，单项失败记录原因后继续下一项，失败
// 项占用的 nonce 槽位不回收。
func (e *Executor) batchTransfer(ctx context.Context, sess *session.Session, raw json.RawMessage) (result, error) {
	var args batchTransferArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}

	items, err := e.parseBatchItems(args.Items)
	if err != nil {
		return result{}, err
	}

	key, bound := sess.Key()
	if !bound {
		return result{}, xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
	}
	identity, _ := sess.Identity()

	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "链标识查询失败")
	}
	fees, err := e.chain.FeeData(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "费率查询失败")
	}
	baseNonce, err := e.chain.PendingNonceAt(ctx, identity.Address)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "nonce 查询失败")
	}

	outcomes := make([]itemOutcome, 0, len(items))
	for i, item := range items {
		nonce := baseNonce + uint64(i)
		outcomes = append(outcomes, e.executeBatchItem(ctx, key, chainID, fees, nonce, item))
	}

	return result{text: e.renderBatchReport(outcomes)}, nil
}

// executeBatchItem 提交一项转账并等待上链。所有失败就地捕获，换
// 成失败结果返回，绝不向上抛出，后续项继续使用下一个 nonce。
func (e *Executor) executeBatchItem(ctx context.Context, key *ecdsa.PrivateKey, chainID *big.Int, fees chain.FeeData, nonce uint64, item transferItem) itemOutcome {
	outcome := itemOutcome{item: item}

	var (
		to       common.Address
		value    *big.Int
		data     []byte
		gasLimit uint64
	)
	switch item.kind {
	case kindNative:
		to = item.recipient
		value = item.amount
		gasLimit = gasNativeTransfer
	case kindAsset:
		packed, err := token.PackTransfer(item.recipient, item.amount)
		if err != nil {
			outcome.reason = "转账调用构造失败: " + err.Error()
			return outcome
		}
		to = item.assetAddr
		value = big.NewInt(0)
		data = packed
		gasLimit = gasTokenTransfer
	}

	signed, err := e.sendSigned(ctx, key, chainID, fees, nonce, &to, value, data, gasLimit)
	if err != nil {
		outcome.reason = err.Error()
		return outcome
	}
	outcome.txHash = signed.Hash()
	if _, err := e.awaitSuccess(ctx, signed.Hash()); err != nil {
		outcome.reason = err.Error()
		return outcome
	}
	outcome.ok = true
	return outcome
}

// renderBatchReport 按输入顺序生成逐项报告。
func (e *Executor) renderBatchReport(outcomes []itemOutcome) string {
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.ok {
			succeeded++
		}
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "批量转账完成：共 %d 项，成功 %d 项，失败 %d 项。\n", len(outcomes), succeeded, len(outcomes)-succeeded)
	for i, outcome := range outcomes {
		if outcome.ok {
			fmt.Fprintf(&builder, "%d. %s — 成功，交易 %s", i+1, outcome.item.describe(), outcome.txHash.Hex())
			if link := e.explorer.TxLink(outcome.txHash); link != "" {
				fmt.Fprintf(&builder, " （%s）", link)
			}
		} else {
			fmt.Fprintf(&builder, "%d. %s — 失败：%s", i+1, outcome.item.describe(), outcome.reason)
		}
		builder.WriteString("\n")
	}
	return strings.TrimRight(builder.String(), "\n")
}
