package ops

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/session"
	"ChainPilot/internal/token"
)

// 固定 gas 上限。原生转账的消耗是协议常量；代币转账给出足够
// 覆盖目标合约 transfer 的余量，避免批量路径上逐项估算引入的
// 额外网络往返。
const (
	gasNativeTransfer uint64 = 21000
	gasTokenTransfer  uint64 = 90000
)

// sendSigned 组装 DynamicFeeTx、用会话私钥签名并广播。nonce 由调
// 用方显式指定，签名层不做自动分配。
func (e *Executor) sendSigned(ctx context.Context, key *ecdsa.PrivateKey, chainID *big.Int, fees chain.FeeData, nonce uint64, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Transaction, error) {
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: fees.GasTipCap,
		GasFeeCap: fees.GasFeeCap,
		Gas:       gasLimit,
		To:        to,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "交易签名失败")
	}
	if err := e.chain.SendTransaction(ctx, signed); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "交易广播失败")
	}
	return signed, nil
}

// awaitSuccess 等待交易上链并确认执行成功。
func (e *Executor) awaitSuccess(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := e.chain.WaitMined(ctx, hash)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "等待交易上链失败")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, xerrors.New(xerrors.CodeExecutionFailure, "交易已上链但执行回滚: "+hash.Hex())
	}
	return receipt, nil
}

func (e *Executor) sendETH(ctx context.Context, sess *session.Session, raw json.RawMessage) (result, error) {
	var args sendETHArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}
	recipient, err := parseAddress(args.To)
	if err != nil {
		return result{}, err
	}
	amountWei, err := parseEtherToWei(args.AmountETH)
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
	nonce, err := e.chain.PendingNonceAt(ctx, identity.Address)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "nonce 查询失败")
	}

	signed, err := e.sendSigned(ctx, key, chainID, fees, nonce, &recipient, amountWei, nil, gasNativeTransfer)
	if err != nil {
		return result{}, err
	}
	if _, err := e.awaitSuccess(ctx, signed.Hash()); err != nil {
		return result{txHash: signed.Hash().Hex()}, err
	}

	text := fmt.Sprintf("转账成功：向 %s 转出 %s ETH。\n交易: %s", recipient.Hex(), formatEther(amountWei), signed.Hash().Hex())
	if link := e.explorer.TxLink(signed.Hash()); link != "" {
		text += "\n浏览器: " + link
	}
	return result{text: text, txHash: signed.Hash().Hex()}, nil
}

func (e *Executor) createToken(ctx context.Context, sess *session.Session, raw json.RawMessage) (result, error) {
	var args createTokenArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}
	name := strings.TrimSpace(args.Name)
	symbol := strings.ToUpper(strings.TrimSpace(args.Symbol))
	if name == "" || symbol == "" {
		return result{}, xerrors.New(xerrors.CodeInvalidArgument, "代币名称与符号不能为空")
	}
	supply, err := parseWholeUnits(args.InitialSupply)
	if err != nil {
		return result{}, err
	}
	if _, exists := e.assets.Resolve(symbol); exists {
		return result{}, xerrors.New(xerrors.CodeConflict, "代币符号 "+symbol+" 已被占用")
	}

	key, bound := sess.Key()
	if !bound {
		return result{}, xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
	}
	identity, _ := sess.Identity()

	deployData, err := token.DeployData(name, symbol, supply)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "部署数据构造失败")
	}

	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "链标识查询失败")
	}
	fees, err := e.chain.FeeData(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "费率查询失败")
	}
	nonce, err := e.chain.PendingNonceAt(ctx, identity.Address)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "nonce 查询失败")
	}
	gasLimit, err := e.chain.EstimateGas(ctx, gethcore.CallMsg{From: identity.Address, Data: deployData})
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "部署 gas 估算失败")
	}

	signed, err := e.sendSigned(ctx, key, chainID, fees, nonce, nil, big.NewInt(0), deployData, gasLimit)
	if err != nil {
		return result{}, err
	}
	receipt, err := e.awaitSuccess(ctx, signed.Hash())
	if err != nil {
		return result{txHash: signed.Hash().Hex()}, err
	}

	tokenAddress := crypto.CreateAddress(identity.Address, nonce)
	if receipt.ContractAddress != (common.Address{}) {
		tokenAddress = receipt.ContractAddress
	}

	text := fmt.Sprintf("代币 %s (%s) 部署成功，初始供应量 %s 枚已全部铸给 %s。\n合约地址: %s\n交易: %s",
		name, symbol, supply.String(), identity.Address.Hex(), tokenAddress.Hex(), signed.Hash().Hex())
	if link := e.explorer.AddressLink(tokenAddress); link != "" {
		text += "\n浏览器: " + link
	}

	if err := e.assets.Put(symbol, tokenAddress); err != nil {
		// 并发创建撞了同名符号。合约已经部署，给出地址让用户自行引用。
		text += "\n注意：符号 " + symbol + " 在部署期间被其他会话注册，本代币未登记到注册表，请直接使用合约地址。"
		return result{text: text, txHash: signed.Hash().Hex()}, nil
	}
	text += "\n符号 " + symbol + " 已登记，后续可直接用符号转账。"
	return result{text: text, txHash: signed.Hash().Hex()}, nil
}

func (e *Executor) sendToken(ctx context.Context, sess *session.Session, raw json.RawMessage) (result, error) {
	var args sendTokenArgs
	if err := decodeArgs(raw, &args); err != nil {
		return result{}, err
	}
	tokenAddress, exists := e.assets.Resolve(args.Symbol)
	if !exists {
		return result{}, xerrors.New(xerrors.CodeInvalidArgument, "代币符号 "+strings.TrimSpace(args.Symbol)+" 未注册，请先用 create_token 创建")
	}
	recipient, err := parseAddress(args.To)
	if err != nil {
		return result{}, err
	}
	amount, err := parseWholeUnits(args.Amount)
	if err != nil {
		return result{}, err
	}

	key, bound := sess.Key()
	if !bound {
		return result{}, xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
	}
	identity, _ := sess.Identity()

	callData, err := token.PackTransfer(recipient, amount)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "转账调用构造失败")
	}

	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "链标识查询失败")
	}
	fees, err := e.chain.FeeData(ctx)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "费率查询失败")
	}
	nonce, err := e.chain.PendingNonceAt(ctx, identity.Address)
	if err != nil {
		return result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, err, "nonce 查询失败")
	}

	signed, err := e.sendSigned(ctx, key, chainID, fees, nonce, &tokenAddress, big.NewInt(0), callData, gasTokenTransfer)
	if err != nil {
		return result{}, err
	}
	if _, err := e.awaitSuccess(ctx, signed.Hash()); err != nil {
		return result{txHash: signed.Hash().Hex()}, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(args.Symbol))
	text := fmt.Sprintf("代币转账成功：向 %s 转出 %s 枚 %s。\n交易: %s", recipient.Hex(), amount.String(), symbol, signed.Hash().Hex())
	if link := e.explorer.TxLink(signed.Hash()); link != "" {
		text += "\n浏览器: " + link
	}
	return result{text: text, txHash: signed.Hash().Hex()}, nil
}
